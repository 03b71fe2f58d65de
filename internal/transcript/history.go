package transcript

import (
	"sync"
	"time"
)

// DefaultWindow is the number of recent turns used as generation context.
const DefaultWindow = 5

// History is an append-only log of utterances. Entries are never removed or
// edited; callers only ever see copies.
type History struct {
	mu      sync.RWMutex
	entries []Utterance
	now     func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

// Append records a new turn and returns it with its sequence number set.
func (h *History) Append(speaker Speaker, text string) Utterance {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := Utterance{
		Seq:       len(h.entries),
		Speaker:   speaker,
		Text:      text,
		Timestamp: h.now().UTC(),
	}
	h.entries = append(h.entries, u)
	return u
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// All returns a copy of every entry in order.
func (h *History) All() []Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return nil
	}
	return append([]Utterance(nil), h.entries...)
}

// Window returns the last k entries (or fewer) in original order.
func (h *History) Window(k int) []Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return windowOf(h.entries, k)
}

// WindowBefore returns up to k entries that precede seq, oldest first.
func (h *History) WindowBefore(seq, k int) []Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()

	end := seq
	if end > len(h.entries) {
		end = len(h.entries)
	}
	if end < 0 {
		end = 0
	}
	return windowOf(h.entries[:end], k)
}

func windowOf(entries []Utterance, k int) []Utterance {
	if k <= 0 || len(entries) == 0 {
		return nil
	}
	start := len(entries) - k
	if start < 0 {
		start = 0
	}
	out := make([]Utterance, len(entries)-start)
	copy(out, entries[start:])
	return out
}
