package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sjawhar/voice-tutor/internal/llm"
)

// Analysis is the spoken-friendly summary of an uploaded document.
type Analysis struct {
	Topic      string `json:"topic"`
	Transcript string `json:"transcript"`
}

type Analyzer struct {
	model   string
	factory ClientFactory
	router  *TopicRouter
}

// NewAnalyzer returns an Analyzer. router may be nil, in which case a topic
// must accompany every document.
func NewAnalyzer(model string, factory ClientFactory, router *TopicRouter) *Analyzer {
	return &Analyzer{model: model, factory: factory, router: router}
}

func (a *Analyzer) Analyze(ctx context.Context, filename string, data []byte, topic string) (Analysis, error) {
	text, err := Extract(filename, data)
	if err != nil {
		return Analysis{}, err
	}
	if text == "" {
		return Analysis{}, errors.New("document contains no text")
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		if a.router == nil {
			return Analysis{}, ErrTopicRequired
		}
		topic = a.router.Select(ctx, text)
	}

	messages := []llm.Message{
		{Role: "system", Content: analysisPrompt(topic)},
		{Role: "user", Content: "Here is the document text:\n\n" + text},
	}
	reply, err := complete(ctx, a.factory, a.model, messages, llm.WithTemperature(0.5), llm.WithMaxTokens(1500))
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze document: %w", err)
	}
	return Analysis{Topic: topic, Transcript: reply}, nil
}

func analysisPrompt(topic string) string {
	return `You are a tax expert analyzing a document provided by a user. Your job is to:
- Extract key tax-related insights from the document.
- Summarize the document in a clear and concise way.
- Highlight any potential tax issues, obligations, or errors.
- Keep the summary relevant to the topic: ` + topic + `.
- Use a formal and informative tone.
- Avoid special characters or formatting, as this may be read aloud in a voice session.`
}
