package call

import (
	"context"
	"time"

	"github.com/sjawhar/voice-tutor/internal/dialogue"
	"github.com/sjawhar/voice-tutor/internal/playback"
	"github.com/sjawhar/voice-tutor/internal/transcript"
)

type State string

const (
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateDispatching State = "dispatching"
	StateSpeaking    State = "speaking"
	StateEnded       State = "ended"
)

// Playback is the single-flight audio output owned by a session.
type Playback interface {
	Play(text string, onDone func(playback.Result)) *playback.Job
	Stop()
}

// Generator issues reply-generation requests. onResult is always invoked
// asynchronously, never from within Dispatch.
type Generator interface {
	Dispatch(ctx context.Context, req dialogue.Request, onResult func(dialogue.Result))
}

type Store interface {
	CreateCall(id, topic string, startedAt time.Time) error
	EndCall(id string, endedAt time.Time, turns int, status string) error
}

type EventBroadcaster interface {
	BroadcastCallStarted(callID, topic string)
	BroadcastStateChanged(callID string, state State)
	BroadcastUtterance(callID string, u transcript.Utterance)
	BroadcastPartialTranscript(callID, text string)
	BroadcastGenerationFailed(callID, reason string)
	BroadcastCallEnded(callID string, duration time.Duration, turns int)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID        string                 `json:"id"`
	Topic     string                 `json:"topic"`
	State     State                  `json:"state"`
	Epoch     uint64                 `json:"epoch"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
	History   []transcript.Utterance `json:"history"`
	Queued    int                    `json:"queued"`
}
