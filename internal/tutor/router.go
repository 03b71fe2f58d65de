package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sjawhar/voice-tutor/internal/llm"
)

// TopicRouter picks the configured topic that best fits a piece of text.
type TopicRouter struct {
	model    string
	factory  ClientFactory
	topics   []string
	fallback string
}

func NewTopicRouter(model string, factory ClientFactory, topics []string, fallback string) *TopicRouter {
	if fallback == "" && len(topics) > 0 {
		fallback = topics[0]
	}
	return &TopicRouter{model: model, factory: factory, topics: topics, fallback: fallback}
}

func SampleText(text string, firstN, midN, lastN int) string {
	words := strings.Fields(text)
	total := len(words)

	if total <= firstN+midN+lastN {
		return text
	}

	first := strings.Join(words[:firstN], " ")
	midStart := (total - midN) / 2
	mid := strings.Join(words[midStart:midStart+midN], " ")
	last := strings.Join(words[total-lastN:], " ")

	return first + "\n\n[...]\n\n" + mid + "\n\n[...]\n\n" + last
}

// Select never fails; every problem falls back to the default topic.
func (r *TopicRouter) Select(ctx context.Context, text string) string {
	if len(r.topics) <= 1 {
		return r.fallback
	}

	sampled := SampleText(text, 300, 200, 200)

	var topicList strings.Builder
	for _, topic := range r.topics {
		fmt.Fprintf(&topicList, "- %s\n", topic)
	}

	prompt := fmt.Sprintf(`Given this document excerpt, choose the single Nigerian tax topic it is most about.

Document excerpt:
%s

Available topics:
%s
Reply with ONLY the topic name, nothing else.`, sampled, topicList.String())

	result, err := complete(ctx, r.factory, r.model, []llm.Message{{Role: "user", Content: prompt}}, llm.WithTemperature(0))
	if err != nil {
		slog.Warn("router: falling back to default topic", "reason", "llm complete failed", "error", err)
		return r.fallback
	}

	chosen := strings.Trim(strings.TrimSpace(result), `."'`)
	for _, topic := range r.topics {
		if strings.EqualFold(topic, chosen) {
			return topic
		}
	}

	slog.Warn("router: falling back to default topic", "reason", "chosen topic not found", "chosen", chosen)
	return r.fallback
}
