package tutor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sjawhar/voice-tutor/internal/llm"
)

type mockLLMClient struct {
	mu           sync.Mutex
	calls        int
	responses    []string
	err          error
	lastMessages []llm.Message
	prompts      []string
}

// Complete returns responses in order, repeating the last one.
func (m *mockLLMClient) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMessages = append([]llm.Message(nil), messages...)
	m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func staticFactory(t *testing.T, client llm.Client) ClientFactory {
	t.Helper()
	return func(provider, model string, opts ...llm.Option) (llm.Client, error) {
		if provider != "openai" {
			t.Fatalf("expected provider openai, got %q", provider)
		}
		if model != "gpt-4o-mini" {
			t.Fatalf("expected model gpt-4o-mini, got %q", model)
		}
		return client, nil
	}
}

func TestAskUsesTutorPrompt(t *testing.T) {
	client := &mockLLMClient{responses: []string{"  VAT is charged at 7.5%.  "}}
	tutor := New("openai/gpt-4o-mini", staticFactory(t, client))

	reply, err := tutor.Ask(context.Background(), "VAT", "What is the VAT rate?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if reply != "VAT is charged at 7.5%." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(client.lastMessages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(client.lastMessages))
	}
	if client.lastMessages[0].Content != "You are a helpful Nigerian tax tutor. Topic: VAT" {
		t.Fatalf("unexpected system prompt %q", client.lastMessages[0].Content)
	}
	if client.lastMessages[1].Role != "user" || client.lastMessages[1].Content != "What is the VAT rate?" {
		t.Fatalf("unexpected user message %+v", client.lastMessages[1])
	}
}

func TestScenarioPrompt(t *testing.T) {
	client := &mockLLMClient{responses: []string{"Deduct 10% WHT."}}
	tutor := New("openai/gpt-4o-mini", staticFactory(t, client))

	if _, err := tutor.Scenario(context.Background(), "WHT", "A company pays rent of 1m naira."); err != nil {
		t.Fatalf("Scenario failed: %v", err)
	}
	if !strings.Contains(client.lastMessages[0].Content, "scenario-based questions") ||
		!strings.HasSuffix(client.lastMessages[0].Content, "Topic: WHT.") {
		t.Fatalf("unexpected system prompt %q", client.lastMessages[0].Content)
	}
	if client.lastMessages[1].Content != "Here is a tax scenario: A company pays rent of 1m naira." {
		t.Fatalf("unexpected user message %q", client.lastMessages[1].Content)
	}
}

func TestAskRejectsBlankMessage(t *testing.T) {
	client := &mockLLMClient{responses: []string{"unused"}}
	tutor := New("openai/gpt-4o-mini", staticFactory(t, client))

	if _, err := tutor.Ask(context.Background(), "VAT", "   "); err == nil {
		t.Fatal("expected error for blank message")
	}
	if client.calls != 0 {
		t.Fatalf("expected no llm call, got %d", client.calls)
	}
}

func TestAskEmptyReply(t *testing.T) {
	client := &mockLLMClient{responses: []string{"   "}}
	tutor := New("openai/gpt-4o-mini", staticFactory(t, client))

	_, err := tutor.Ask(context.Background(), "VAT", "Hello?")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestAskInvalidModel(t *testing.T) {
	tutor := New("gpt-4o-mini", func(_, _ string, _ ...llm.Option) (llm.Client, error) {
		t.Fatal("factory should not be called for an invalid model")
		return nil, nil
	})

	if _, err := tutor.Ask(context.Background(), "VAT", "Hello?"); err == nil {
		t.Fatal("expected error for invalid model")
	}
}

func TestAskFactoryError(t *testing.T) {
	tutor := New("openai/gpt-4o-mini", func(_, _ string, _ ...llm.Option) (llm.Client, error) {
		return nil, errors.New("missing key")
	})

	_, err := tutor.Ask(context.Background(), "VAT", "Hello?")
	if err == nil || !strings.Contains(err.Error(), "missing key") {
		t.Fatalf("expected factory error, got %v", err)
	}
}
