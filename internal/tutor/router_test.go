package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRouterSelectsTopic(t *testing.T) {
	client := &mockLLMClient{responses: []string{"wht."}}
	router := NewTopicRouter("openai/gpt-4o-mini", staticFactory(t, client), []string{"VAT", "WHT", "CIT"}, "VAT")

	topic := router.Select(context.Background(), buildNumberedText(900))
	if topic != "WHT" {
		t.Fatalf("expected WHT, got %q", topic)
	}
	if client.calls != 1 {
		t.Fatalf("expected one llm call, got %d", client.calls)
	}
	if !strings.Contains(client.prompts[0], "- CIT\n") {
		t.Fatalf("expected topics listed in prompt, got %q", client.prompts[0])
	}
}

func TestRouterFallsBackToDefault(t *testing.T) {
	client := &mockLLMClient{responses: []string{"gibberish-output"}}
	router := NewTopicRouter("openai/gpt-4o-mini", staticFactory(t, client), []string{"VAT", "WHT"}, "VAT")

	if topic := router.Select(context.Background(), "some text"); topic != "VAT" {
		t.Fatalf("expected fallback VAT, got %q", topic)
	}
}

func TestRouterFallsBackOnError(t *testing.T) {
	client := &mockLLMClient{err: errors.New("boom")}
	router := NewTopicRouter("openai/gpt-4o-mini", staticFactory(t, client), []string{"VAT", "WHT"}, "WHT")

	if topic := router.Select(context.Background(), "some text"); topic != "WHT" {
		t.Fatalf("expected fallback WHT, got %q", topic)
	}
}

func TestRouterSingleTopicSkipsModel(t *testing.T) {
	client := &mockLLMClient{responses: []string{"VAT"}}
	router := NewTopicRouter("openai/gpt-4o-mini", staticFactory(t, client), []string{"CIT"}, "")

	if topic := router.Select(context.Background(), "some text"); topic != "CIT" {
		t.Fatalf("expected CIT, got %q", topic)
	}
	if client.calls != 0 {
		t.Fatalf("expected no llm call, got %d", client.calls)
	}
}

func TestSampleText(t *testing.T) {
	text := buildNumberedText(1000)
	sampled := SampleText(text, 300, 200, 200)

	if strings.Count(sampled, "[...]") != 2 {
		t.Fatalf("expected two elision markers, got %q", sampled)
	}
	if !strings.HasPrefix(sampled, "w0 ") || !strings.HasSuffix(sampled, " w999") {
		t.Fatalf("expected first and last words kept, got prefix %q", sampled[:10])
	}
	if len(strings.Fields(sampled)) != 702 {
		t.Fatalf("expected 700 words plus markers, got %d", len(strings.Fields(sampled)))
	}

	short := buildNumberedText(50)
	if SampleText(short, 300, 200, 200) != short {
		t.Fatal("expected short text unchanged")
	}
}

func buildNumberedText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}
