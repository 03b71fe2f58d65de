package transcript

import (
	"fmt"
	"strings"
	"time"
)

type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Utterance is one recorded turn. Values are copied, never shared, so an
// Utterance cannot change once it has been appended to a History.
type Utterance struct {
	Seq       int       `json:"seq"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (u Utterance) FormatLine() string {
	ts := u.Timestamp.Format("15:04:05")
	return fmt.Sprintf("[%s] %s: %s", ts, u.Speaker, strings.TrimSpace(u.Text))
}

// Role maps a speaker to the chat role used by generation backends.
func (u Utterance) Role() string {
	if u.Speaker == SpeakerBot {
		return "assistant"
	}
	return "user"
}
