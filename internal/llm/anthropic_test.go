package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicCompleteSeparatesSystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")

		var req struct {
			Model     string `json:"model"`
			MaxTokens int64  `json:"max_tokens"`
			System    []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Model != "claude-3-5-sonnet-20240620" {
			t.Fatalf("unexpected model %q", req.Model)
		}
		if req.MaxTokens != 8192 {
			t.Fatalf("expected max_tokens 8192, got %d", req.MaxTokens)
		}
		if len(req.System) != 1 || req.System[0].Text != "You are a helpful Nigerian tax tutor. Topic: CIT" {
			t.Fatalf("expected system prompt in top-level system field, got %#v", req.System)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 chat messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "user" || req.Messages[1].Role != "assistant" {
			t.Fatalf("unexpected chat roles: %#v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-3-5-sonnet-20240620",
			"content": []map[string]any{
				{"type": "text", "text": " Small companies "},
				{"type": "text", "text": "are exempt."},
			},
			"stop_reason":   "end_turn",
			"stop_sequence": "",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 2,
			},
		})
	}))
	defer server.Close()

	client, err := newAnthropicClient("test-key", "claude-3-5-sonnet-20240620", &clientOptions{baseURL: server.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "You are a helpful Nigerian tax tutor. Topic: CIT"},
		{Role: "user", Content: "Who pays CIT?"},
		{Role: "assistant", Content: "Companies resident in Nigeria."},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Small companies are exempt." {
		t.Fatalf("expected combined trimmed text, got %q", got)
	}
}

func TestAnthropic_Complete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-3-5-sonnet-20240620",
			"content":       []map[string]any{},
			"stop_reason":   "end_turn",
			"stop_sequence": "",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 0,
			},
		})
	}))
	defer server.Close()

	client, err := newAnthropicClient("test-key", "claude-3-5-sonnet-20240620", &clientOptions{baseURL: server.URL})
	if err != nil {
		t.Fatalf("newAnthropicClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err == nil {
		t.Fatal("expected error for empty content, got nil")
	}
	if !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected 'empty response' in error, got %q", err.Error())
	}
}

func TestAnthropicGenerationParams(t *testing.T) {
	for _, tc := range []struct {
		name     string
		opts     *clientOptions
		wantMax  int64
		wantTemp *float64
	}{
		{name: "defaults", opts: &clientOptions{}, wantMax: 8192},
		{name: "configured", opts: &clientOptions{maxTokens: 400, temperature: 0.25}, wantMax: 400, wantTemp: ptr(0.25)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := captureAnthropicRequest(t, tc.opts)
			if got.MaxTokens != tc.wantMax {
				t.Fatalf("expected max_tokens %d, got %d", tc.wantMax, got.MaxTokens)
			}
			switch {
			case tc.wantTemp == nil && got.Temperature != nil:
				t.Fatalf("expected no temperature, got %v", *got.Temperature)
			case tc.wantTemp != nil && (got.Temperature == nil || *got.Temperature != *tc.wantTemp):
				t.Fatalf("expected temperature %v, got %v", *tc.wantTemp, got.Temperature)
			}
			if len(got.Messages) != 2 || got.Messages[1].Role != "user" {
				t.Fatalf("expected tutor turns after the system prompt, got %+v", got.Messages)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

type anthropicRequest struct {
	MaxTokens   int64    `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func captureAnthropicRequest(t *testing.T, opts *clientOptions) anthropicRequest {
	t.Helper()
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-3-5-sonnet-20240620",
			"content": []map[string]any{
				{"type": "text", "text": "Input VAT can be offset against output VAT."},
			},
			"stop_reason":   "end_turn",
			"stop_sequence": "",
			"usage": map[string]any{
				"input_tokens":  10,
				"output_tokens": 9,
			},
		})
	}))
	defer server.Close()

	opts.baseURL = server.URL
	client, err := newAnthropicClient("test-key", "claude-3-5-sonnet-20240620", opts)
	if err != nil {
		t.Fatalf("newAnthropicClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{
		{Role: "system", Content: "You are a Nigerian tax tutor. Topic: VAT"},
		{Role: "assistant", Content: "Hello! Let's talk about VAT."},
		{Role: "user", Content: "Can I recover input VAT?"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	return captured
}
