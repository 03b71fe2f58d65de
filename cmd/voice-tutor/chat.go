package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sjawhar/voice-tutor/internal/config"
	"github.com/sjawhar/voice-tutor/internal/storage"
	"github.com/sjawhar/voice-tutor/internal/tutor"
)

const chatHelp = "Commands: /quiz for a practice question, /topic NAME to switch topic, /quit to leave."

func runChat(ctx context.Context, cfg config.Config, topic string) error {
	if strings.TrimSpace(topic) == "" {
		topic = cfg.DefaultTopic
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	factory := clientFactory(cfg)
	t := tutor.New(cfg.Model, factory)
	quiz := tutor.NewQuizGenerator(cfg.Model, factory, store)

	l, err := readline.NewEx(&readline.Config{
		Stdin:  os.Stdin,
		Stdout: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("could not read from terminal: %w", err)
	}
	defer func() {
		_ = l.Close()
	}()

	out := l.Stdout()
	_, _ = fmt.Fprintf(out, "Tax tutor ready on %s. %s\n", topic, chatHelp)
	for {
		l.SetPrompt(fmt.Sprintf("[%s] you> ", topic))
		line, err := l.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read from terminal: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/help":
			_, _ = fmt.Fprintln(out, chatHelp)
		case line == "/quiz":
			q, err := quiz.Generate(ctx, topic)
			if err != nil {
				_, _ = fmt.Fprintf(out, "quiz failed: %v\n", err)
				continue
			}
			printQuestion(out, q)
		case strings.HasPrefix(line, "/topic "):
			topic = strings.TrimSpace(strings.TrimPrefix(line, "/topic "))
		default:
			reply, err := t.Ask(ctx, topic, line)
			if err != nil {
				_, _ = fmt.Fprintf(out, "tutor failed: %v\n", err)
				continue
			}
			_, _ = fmt.Fprintf(out, "tutor> %s\n", reply)
		}
	}
}

func printQuestion(w io.Writer, q tutor.Question) {
	_, _ = fmt.Fprintf(w, "%s\n", q.Question)
	for i, opt := range q.Options {
		_, _ = fmt.Fprintf(w, "  %c) %s\n", 'A'+i, opt)
	}
	_, _ = fmt.Fprintf(w, "Answer: %s\n%s\n", q.Answer, q.Explanation)
}
