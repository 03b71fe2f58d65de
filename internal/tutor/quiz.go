package tutor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sjawhar/voice-tutor/internal/llm"
	"github.com/sjawhar/voice-tutor/internal/storage"
)

const recentQuestionLimit = 10

var ErrDuplicateQuestion = errors.New("question already asked")

type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// QuestionBank remembers every question handed out so none is repeated.
type QuestionBank interface {
	ClaimQuestion(hash string, q storage.QuizQuestion) (bool, error)
	RecentQuestions(topic string, limit int) ([]string, error)
}

type QuizGenerator struct {
	model   string
	factory ClientFactory
	bank    QuestionBank
	sleep   func(time.Duration)
}

func NewQuizGenerator(model string, factory ClientFactory, bank QuestionBank) *QuizGenerator {
	return &QuizGenerator{
		model:   model,
		factory: factory,
		bank:    bank,
		sleep:   time.Sleep,
	}
}

// Generate returns a new multiple-choice question on topic.
func (g *QuizGenerator) Generate(ctx context.Context, topic string) (Question, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Question{}, ErrTopicRequired
	}

	var recent []string
	if g.bank != nil {
		var err error
		recent, err = g.bank.RecentQuestions(topic, recentQuestionLimit)
		if err != nil {
			slog.Warn("quiz: load recent questions failed", "topic", topic, "error", err)
		}
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		q, err := g.attempt(ctx, topic, recent)
		if err == nil {
			return q, nil
		}
		if ctx.Err() != nil {
			return Question{}, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, ErrDuplicateQuestion) {
			recent = append([]string{q.Question}, recent...)
		}
		slog.Warn("quiz: attempt failed", "topic", topic, "attempt", attempt+1, "error", err)
		if attempt < len(backoff)-1 {
			g.sleep(backoff[attempt])
		}
	}
	return Question{}, fmt.Errorf("generate quiz failed after retries: %w", lastErr)
}

func (g *QuizGenerator) attempt(ctx context.Context, topic string, recent []string) (Question, error) {
	messages := []llm.Message{
		{Role: "system", Content: "You are a helpful Nigerian tax tutor assistant."},
		{Role: "user", Content: quizPrompt(topic, recent)},
	}
	raw, err := complete(ctx, g.factory, g.model, messages, llm.WithTemperature(defaultTemperature))
	if err != nil {
		return Question{}, err
	}

	q, err := ParseQuestion(raw)
	if err != nil {
		return Question{}, err
	}

	if g.bank != nil {
		claimed, err := g.bank.ClaimQuestion(QuestionHash(q.Question), storage.QuizQuestion{
			Topic:       topic,
			Question:    q.Question,
			Options:     q.Options,
			Answer:      q.Answer,
			Explanation: q.Explanation,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return Question{}, fmt.Errorf("claim question: %w", err)
		}
		if !claimed {
			return q, ErrDuplicateQuestion
		}
	}
	return q, nil
}

func quizPrompt(topic string, recent []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a new and unique multiple-choice tax question on the topic %q.\n", topic)
	b.WriteString("Do not repeat previous questions. Include:\n")
	b.WriteString("- A clear question\n- Four answer options\n- The correct answer\n- A brief explanation of the correct answer\n")
	if len(recent) > 0 {
		b.WriteString("\nQuestions already asked:\n")
		for _, q := range recent {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	b.WriteString(`
Respond in JSON format like this:
{
  "question": "...",
  "options": ["...", "...", "...", "..."],
  "answer": "...",
  "explanation": "..."
}`)
	return b.String()
}

// ParseQuestion decodes a model reply, tolerating a surrounding code fence.
func ParseQuestion(raw string) (Question, error) {
	body := strings.TrimSpace(raw)
	if start := strings.Index(body, "{"); start >= 0 {
		if end := strings.LastIndex(body, "}"); end > start {
			body = body[start : end+1]
		}
	}

	var q Question
	if err := json.Unmarshal([]byte(body), &q); err != nil {
		return Question{}, fmt.Errorf("decode quiz question: %w", err)
	}

	q.Question = strings.TrimSpace(q.Question)
	q.Answer = strings.TrimSpace(q.Answer)
	q.Explanation = strings.TrimSpace(q.Explanation)
	for i := range q.Options {
		q.Options[i] = strings.TrimSpace(q.Options[i])
	}

	switch {
	case q.Question == "":
		return Question{}, errors.New("quiz question is empty")
	case len(q.Options) != 4:
		return Question{}, fmt.Errorf("quiz question has %d options, want 4", len(q.Options))
	case !slices.Contains(q.Options, q.Answer):
		return Question{}, fmt.Errorf("quiz answer %q is not one of the options", q.Answer)
	}
	return q, nil
}

// QuestionHash identifies a question regardless of case and spacing.
func QuestionHash(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
