package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type CallStartedEvent struct {
	Event
	CallID string `json:"call_id"`
	Topic  string `json:"topic"`
}

type StateChangedEvent struct {
	Event
	CallID string `json:"call_id"`
	State  string `json:"state"`
}

type UtteranceEvent struct {
	Event
	CallID  string `json:"call_id"`
	Seq     int    `json:"seq"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// PartialTranscriptEvent carries interim recognition text. It is never part
// of the call history.
type PartialTranscriptEvent struct {
	Event
	CallID string `json:"call_id"`
	Text   string `json:"text"`
}

type GenerationFailedEvent struct {
	Event
	CallID string `json:"call_id"`
	Reason string `json:"reason"`
}

type CallEndedEvent struct {
	Event
	CallID   string  `json:"call_id"`
	Duration float64 `json:"duration"`
	Turns    int     `json:"turns"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
