package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sjawhar/voice-tutor/internal/llm"
)

const DefaultTimeout = 30 * time.Second

type Dispatcher struct {
	client  llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.logger = l
		}
	}
}

func NewDispatcher(client llm.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{client: client, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Generate issues exactly one generation request and waits for it.
// Backend failures, timeouts and empty replies all come back as a failed Result.
func (d *Dispatcher) Generate(ctx context.Context, req Request) Result {
	res := Result{Epoch: req.Epoch}
	if d.client == nil {
		res.Err = fmt.Errorf("generate reply: no model configured")
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	reply, err := d.client.Complete(ctx, BuildMessages(req))
	if err != nil {
		res.Err = fmt.Errorf("generate reply: %w", err)
		return res
	}
	reply = cleanReply(reply)
	if reply == "" {
		res.Err = fmt.Errorf("generate reply: %w", ErrEmptyReply)
		return res
	}

	d.logger.Debug("dialogue: reply generated",
		"topic", req.Topic,
		"context_turns", len(req.Context),
		"elapsed", time.Since(start),
	)
	res.Reply = reply
	return res
}

// Dispatch runs Generate in the background and hands the result to onResult.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, onResult func(Result)) {
	go func() {
		res := d.Generate(ctx, req)
		if onResult != nil {
			onResult(res)
		}
	}()
}
