package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sjawhar/voice-tutor/internal/call"
	"github.com/sjawhar/voice-tutor/internal/transcript"
)

// consoleEvents prints call events to a terminal.
type consoleEvents struct {
	mu sync.Mutex
	w  io.Writer
}

var _ call.EventBroadcaster = (*consoleEvents)(nil)

func newConsoleEvents(w io.Writer) *consoleEvents {
	return &consoleEvents{w: w}
}

func (c *consoleEvents) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, format, args...)
}

func (c *consoleEvents) BroadcastCallStarted(callID, topic string) {
	c.printf("[%s] call started on %s\n", short(callID), topic)
}

func (c *consoleEvents) BroadcastStateChanged(callID string, state call.State) {
	c.printf("[%s] %s\n", short(callID), state)
}

func (c *consoleEvents) BroadcastUtterance(callID string, u transcript.Utterance) {
	who := "you"
	if u.Speaker == transcript.SpeakerBot {
		who = "tutor"
	}
	c.printf("[%s] %s: %s\n", short(callID), who, u.Text)
}

func (c *consoleEvents) BroadcastPartialTranscript(string, string) {}

func (c *consoleEvents) BroadcastGenerationFailed(callID, reason string) {
	c.printf("[%s] tutor could not answer: %s\n", short(callID), reason)
}

func (c *consoleEvents) BroadcastCallEnded(callID string, duration time.Duration, turns int) {
	c.printf("[%s] call ended after %s, %d turns\n", short(callID), duration.Round(time.Second), turns)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
