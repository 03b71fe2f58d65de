// Package dialogue issues one reply-generation request per accepted user
// utterance.
package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sjawhar/voice-tutor/internal/llm"
	"github.com/sjawhar/voice-tutor/internal/transcript"
)

var ErrEmptyReply = errors.New("empty reply")

// Request carries everything needed for one reply. Context is a snapshot
// taken at dispatch time and is never mutated afterwards.
type Request struct {
	UtteranceText string
	Context       []transcript.Utterance
	Topic         string
	Epoch         uint64
}

// Result is either a reply or a failure, tagged with the epoch the request
// was issued under.
type Result struct {
	Reply string
	Err   error
	Epoch uint64
}

func (r Result) Failed() bool { return r.Err != nil }

// SystemPrompt is the tutor persona for spoken calls.
func SystemPrompt(topic string) string {
	prompt := "You are a helpful Nigerian tax tutor."
	if topic = strings.TrimSpace(topic); topic != "" {
		prompt += fmt.Sprintf(" Topic: %s.", topic)
	}
	return prompt + " You are speaking on a voice call, so answer in a few short, plain sentences without markdown or lists."
}

// BuildMessages renders the system prompt, prior turns (oldest first) and the
// user's utterance.
func BuildMessages(req Request) []llm.Message {
	messages := make([]llm.Message, 0, len(req.Context)+2)
	messages = append(messages, llm.Message{Role: "system", Content: SystemPrompt(req.Topic)})
	for _, u := range req.Context {
		messages = append(messages, llm.Message{Role: u.Role(), Content: u.Text})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.UtteranceText})
	return messages
}

// cleanReply strips markdown emphasis and whitespace that would be read aloud.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.NewReplacer("**", "", "__", "", "`", "", "#", "").Replace(reply)
	return strings.TrimSpace(reply)
}
