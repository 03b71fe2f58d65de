package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/voice-tutor/internal/call"
	"github.com/sjawhar/voice-tutor/internal/transcript"
)

var _ call.EventBroadcaster = (*Hub)(nil)

// Hub fans call events out to websocket subscribers. Broadcasts never block:
// a subscriber that falls behind misses events.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastCallStarted(callID, topic string) {
	h.broadcastEvent(CallStartedEvent{
		Event:  newEvent("call_started", time.Now().UTC()),
		CallID: callID,
		Topic:  topic,
	})
}

func (h *Hub) BroadcastStateChanged(callID string, state call.State) {
	h.broadcastEvent(StateChangedEvent{
		Event:  newEvent("state_changed", time.Now().UTC()),
		CallID: callID,
		State:  string(state),
	})
}

func (h *Hub) BroadcastUtterance(callID string, u transcript.Utterance) {
	h.broadcastEvent(UtteranceEvent{
		Event:   newEvent("utterance", u.Timestamp),
		CallID:  callID,
		Seq:     u.Seq,
		Speaker: string(u.Speaker),
		Text:    u.Text,
	})
}

func (h *Hub) BroadcastPartialTranscript(callID, text string) {
	h.broadcastEvent(PartialTranscriptEvent{
		Event:  newEvent("partial_transcript", time.Now().UTC()),
		CallID: callID,
		Text:   text,
	})
}

func (h *Hub) BroadcastGenerationFailed(callID, reason string) {
	h.broadcastEvent(GenerationFailedEvent{
		Event:  newEvent("generation_failed", time.Now().UTC()),
		CallID: callID,
		Reason: reason,
	})
}

func (h *Hub) BroadcastCallEnded(callID string, duration time.Duration, turns int) {
	h.broadcastEvent(CallEndedEvent{
		Event:    newEvent("call_ended", time.Now().UTC()),
		CallID:   callID,
		Duration: duration.Seconds(),
		Turns:    turns,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
