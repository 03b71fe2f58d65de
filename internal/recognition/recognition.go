// Package recognition turns a continuously open microphone into discrete
// recognized utterances.
//
// A Recognizer opens a listening channel and reports Partial, Final and Error
// events to a Handler until the returned Handle is stopped. Errors never end
// the channel; it keeps listening until Stop is called. If the channel drops
// on its own a single Closed event is delivered and nothing follows it.
package recognition

import (
	"context"
	"strings"
	"time"
	"unicode"
)

const (
	DefaultLanguage       = "en-NG"
	DefaultSilenceTimeout = 1500 * time.Millisecond
)

type Config struct {
	Language       string
	SilenceTimeout time.Duration
	SampleRate     int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Language) == "" {
		c.Language = DefaultLanguage
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	return c
}

type EventKind int

const (
	EventPartial EventKind = iota
	EventFinal
	EventError
	// EventClosed means the channel dropped without Stop. The owner should
	// still call Stop to release the audio source.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

func Partial(text string) Event { return Event{Kind: EventPartial, Text: text} }
func Final(text string) Event   { return Event{Kind: EventFinal, Text: text} }
func Failure(err error) Event   { return Event{Kind: EventError, Err: err} }
func Closed(err error) Event    { return Event{Kind: EventClosed, Err: err} }

// Handler receives events. It may be called from several goroutines.
type Handler func(Event)

type Recognizer interface {
	Start(ctx context.Context, cfg Config, handler Handler) (Handle, error)
}

// Handle is an open listening channel. Stop is asynchronous: once Stop
// returns, no new event delivery begins, and the returned channel is closed
// after the audio source and connection have shut down. Calling Stop more
// than once returns the same channel. Handlers must not call Stop.
type Handle interface {
	Stop() <-chan struct{}
}

// IsSpeech reports whether text is worth treating as an utterance: it must
// contain at least one letter or digit.
func IsSpeech(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
