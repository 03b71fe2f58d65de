package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/voice-tutor/internal/llm"
	"github.com/sjawhar/voice-tutor/internal/transcript"
)

type llmMock struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	calls    int
	messages [][]llm.Message
}

func (m *llmMock) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.calls++
	m.messages = append(m.messages, messages)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.reply, m.err
}

func TestGenerateBuildsPromptWithContext(t *testing.T) {
	history := transcript.NewHistory()
	history.Append(transcript.SpeakerBot, "Hello! Let's talk about VAT.")
	history.Append(transcript.SpeakerUser, "What is VAT?")
	history.Append(transcript.SpeakerBot, "VAT is a consumption tax.")

	mock := &llmMock{reply: "It is 7.5 percent."}
	d := NewDispatcher(mock)

	res := d.Generate(context.Background(), Request{
		UtteranceText: "What is the rate?",
		Context:       history.All(),
		Topic:         "VAT",
		Epoch:         3,
	})

	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Reply != "It is 7.5 percent." || res.Epoch != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if mock.calls != 1 {
		t.Fatalf("expected exactly one request, got %d", mock.calls)
	}

	msgs := mock.messages[0]
	if len(msgs) != 5 {
		t.Fatalf("expected system + 3 context + user, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "Topic: VAT") {
		t.Fatalf("unexpected system message %+v", msgs[0])
	}
	wantRoles := []string{"assistant", "user", "assistant", "user"}
	for i, role := range wantRoles {
		if msgs[i+1].Role != role {
			t.Errorf("message %d: role %q, want %q", i+1, msgs[i+1].Role, role)
		}
	}
	if msgs[4].Content != "What is the rate?" {
		t.Fatalf("expected user text last, got %q", msgs[4].Content)
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mock    *llmMock
		timeout time.Duration
		want    error
	}{
		{name: "backend error", mock: &llmMock{err: errors.New("503")}},
		{name: "empty reply", mock: &llmMock{reply: "   "}, want: ErrEmptyReply},
		{name: "markdown only", mock: &llmMock{reply: "** **"}, want: ErrEmptyReply},
		{name: "timeout", mock: &llmMock{reply: "late", delay: 200 * time.Millisecond}, timeout: 20 * time.Millisecond, want: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(tt.mock, WithTimeout(tt.timeout))
			res := d.Generate(context.Background(), Request{UtteranceText: "hi", Epoch: 7})
			if !res.Failed() {
				t.Fatalf("expected failure, got reply %q", res.Reply)
			}
			if res.Epoch != 7 {
				t.Fatalf("expected epoch preserved, got %d", res.Epoch)
			}
			if tt.want != nil && !errors.Is(res.Err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, res.Err)
			}
		})
	}
}

func TestGenerateWithoutClient(t *testing.T) {
	res := NewDispatcher(nil).Generate(context.Background(), Request{UtteranceText: "hi"})
	if !res.Failed() {
		t.Fatal("expected failure without a client")
	}
}

func TestDispatchDeliversResult(t *testing.T) {
	d := NewDispatcher(&llmMock{reply: "**VAT** is a consumption tax."})

	got := make(chan Result, 1)
	d.Dispatch(context.Background(), Request{UtteranceText: "What is VAT?", Epoch: 1}, func(r Result) {
		got <- r
	})

	select {
	case res := <-got:
		if res.Reply != "VAT is a consumption tax." {
			t.Fatalf("expected markdown stripped, got %q", res.Reply)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch result")
	}
}

func TestSystemPromptWithoutTopic(t *testing.T) {
	if strings.Contains(SystemPrompt(" "), "Topic:") {
		t.Fatal("expected no topic line for blank topic")
	}
}
