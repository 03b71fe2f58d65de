// Package tutor answers typed questions, scenarios, quizzes and uploaded
// documents outside of a live call.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sjawhar/voice-tutor/internal/llm"
)

var (
	ErrTopicRequired       = errors.New("topic is required")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrEmptyResponse       = errors.New("no response from model")
)

const (
	defaultTemperature float32 = 0.7
	defaultMaxTokens           = 1000
)

// ClientFactory builds a model client for provider/model with the given
// request options.
type ClientFactory func(provider, model string, opts ...llm.Option) (llm.Client, error)

type Tutor struct {
	model   string
	factory ClientFactory
}

func New(model string, factory ClientFactory) *Tutor {
	return &Tutor{model: model, factory: factory}
}

// Ask answers a single typed question on topic.
func (t *Tutor) Ask(ctx context.Context, topic, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message is required")
	}
	messages := []llm.Message{
		{Role: "system", Content: "You are a helpful Nigerian tax tutor. Topic: " + strings.TrimSpace(topic)},
		{Role: "user", Content: message},
	}
	reply, err := t.complete(ctx, messages, llm.WithTemperature(defaultTemperature), llm.WithMaxTokens(defaultMaxTokens))
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	return reply, nil
}

// Scenario works through a tax scenario described by the user.
func (t *Tutor) Scenario(ctx context.Context, topic, scenario string) (string, error) {
	scenario = strings.TrimSpace(scenario)
	if scenario == "" {
		return "", errors.New("scenario is required")
	}
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf("You are a Nigerian tax tutor. Answer scenario-based questions clearly and accurately. Topic: %s.", strings.TrimSpace(topic))},
		{Role: "user", Content: "Here is a tax scenario: " + scenario},
	}
	reply, err := t.complete(ctx, messages, llm.WithTemperature(defaultTemperature), llm.WithMaxTokens(defaultMaxTokens))
	if err != nil {
		return "", fmt.Errorf("scenario: %w", err)
	}
	return reply, nil
}

func (t *Tutor) complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	return complete(ctx, t.factory, t.model, messages, opts...)
}

func complete(ctx context.Context, factory ClientFactory, modelStr string, messages []llm.Message, opts ...llm.Option) (string, error) {
	provider, model, err := llm.ParseModel(modelStr)
	if err != nil {
		return "", err
	}
	client, err := factory(provider, model, opts...)
	if err != nil {
		return "", fmt.Errorf("create llm client: %w", err)
	}
	reply, err := client.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}
