package playback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAISynthesizerRequestsPCM(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x01, 0x02, 0x03, 0x04})
	}))
	defer server.Close()

	synth := NewOpenAISynthesizer("test-key", server.URL+"/v1")
	pcm, err := synth.Synthesize(context.Background(), "VAT is a consumption tax.", "nova")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(pcm))
	}
	if got["response_format"] != "pcm" || got["voice"] != "nova" || got["input"] != "VAT is a consumption tax." {
		t.Fatalf("unexpected request body %v", got)
	}
}

func TestOpenAISynthesizerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	defer server.Close()

	synth := NewOpenAISynthesizer("test-key", server.URL+"/v1")
	if _, err := synth.Synthesize(context.Background(), "hello", ""); err == nil {
		t.Fatal("expected error from rate limited response")
	}
}

func TestDeepgramSynthesizerRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speak" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if !strings.EqualFold(r.Header.Get("Authorization"), "Token dg-key") {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		q := r.URL.Query()
		if q.Get("model") != DefaultDeepgramVoice || q.Get("encoding") != "linear16" || q.Get("sample_rate") != "24000" || q.Get("container") != "none" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text != "VAT is charged at 7.5 percent." {
			t.Errorf("unexpected body %+v (%v)", body, err)
		}
		w.Header().Set("dg-char-count", "30")
		w.Header().Set("Content-Type", "audio/l16")
		_, _ = w.Write([]byte{0x10, 0x00, 0x20, 0x00})
	}))
	defer server.Close()

	synth := newDeepgramSynthesizer("dg-key", server.URL, 24000)

	pcm, err := synth.Synthesize(context.Background(), "VAT is charged at 7.5 percent.", "alloy")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(pcm))
	}
}

func TestDeepgramSynthesizerStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	synth := newDeepgramSynthesizer("dg-key", server.URL, 24000)

	_, err := synth.Synthesize(context.Background(), "hello", "aura-luna-en")
	if err == nil || !strings.Contains(err.Error(), "deepgram speak") {
		t.Fatalf("expected deepgram speak error, got %v", err)
	}
}

func TestDeepgramSynthesizerWithoutKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("DEEPGRAM_ACCESS_TOKEN", "")

	synth := NewDeepgramSynthesizer("", 24000)
	if _, err := synth.Synthesize(context.Background(), "hello", ""); !errors.Is(err, errNoDeepgramClient) {
		t.Fatalf("expected errNoDeepgramClient, got %v", err)
	}
}
