package recognition

import (
	"strings"
	"sync"
)

// FragmentBuffer accumulates finalized transcript fragments until the
// speaker pauses long enough for the utterance to be considered complete.
type FragmentBuffer struct {
	mu        sync.Mutex
	fragments []string
}

func NewFragmentBuffer() *FragmentBuffer {
	return &FragmentBuffer{}
}

func (b *FragmentBuffer) Add(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragments = append(b.fragments, fragment)
}

// Flush returns the joined fragments and resets the buffer.
// Returns "" if the buffer is empty.
func (b *FragmentBuffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.fragments) == 0 {
		return ""
	}
	out := strings.Join(b.fragments, " ")
	b.fragments = nil
	return out
}

func (b *FragmentBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}
