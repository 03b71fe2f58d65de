// Package playback gates audio output so that at most one spoken reply is
// audible at a time.
package playback

import (
	"context"
	"errors"
)

var ErrNoAudio = errors.New("synthesizer returned no audio")

type Status int

const (
	StatusCreated Status = iota
	StatusPlaying
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusPlaying:
		return "playing"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Synthesizer turns reply text into mono PCM16-LE audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Player renders PCM audio and blocks until it finished or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// Result reports how a job ended.
type Result struct {
	JobID  string
	Status Status
	Err    error
}
