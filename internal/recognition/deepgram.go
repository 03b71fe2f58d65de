package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const (
	deepgramModel = "nova-2"
	// Deepgram rejects utterance_end_ms below one second.
	minUtteranceEndMs = 1000
	stopGrace         = 2 * time.Second
)

var (
	ErrConnect          = errors.New("deepgram connect failed")
	errConnectionClosed = errors.New("deepgram connection closed")
)

// Source is a capture device producing PCM16-LE audio.
type Source interface {
	Start() error
	Stop() error
	Stream(w io.Writer) error
}

type liveClient interface {
	Connect() bool
	Stop()
	Write(p []byte) (int, error)
}

type dialFunc func(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions, cb api.LiveMessageCallback) (liveClient, error)

// Deepgram recognizes speech by streaming a Source to Deepgram's live
// transcription API.
type Deepgram struct {
	apiKey string
	source Source
	dial   dialFunc
	logger *slog.Logger
}

var initOnce sync.Once

// Init configures the Deepgram SDK. It must run before the first Start.
func Init() {
	initOnce.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})
}

func NewDeepgram(apiKey string, source Source, logger *slog.Logger) *Deepgram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deepgram{
		apiKey: apiKey,
		source: source,
		dial:   dialDeepgram,
		logger: logger,
	}
}

func dialDeepgram(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions, cb api.LiveMessageCallback) (liveClient, error) {
	dg, err := client.NewWSUsingCallback(ctx, apiKey, &interfaces.ClientOptions{EnableKeepAlive: true}, opts, cb)
	if err != nil {
		return nil, err
	}
	return dg, nil
}

func liveOptions(cfg Config) *interfaces.LiveTranscriptionOptions {
	endpointing := int(cfg.SilenceTimeout / time.Millisecond)
	utteranceEnd := endpointing
	if utteranceEnd < minUtteranceEndMs {
		utteranceEnd = minUtteranceEndMs
	}
	return &interfaces.LiveTranscriptionOptions{
		Model:          deepgramModel,
		Language:       cfg.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		VadEvents:      true,
		Endpointing:    strconv.Itoa(endpointing),
		UtteranceEndMs: strconv.Itoa(utteranceEnd),
		Encoding:       "linear16",
		SampleRate:     cfg.SampleRate,
		Channels:       1,
	}
}

func (d *Deepgram) Start(ctx context.Context, cfg Config, handler Handler) (Handle, error) {
	if d.source == nil {
		return nil, errors.New("recognition: no audio source")
	}
	cfg = cfg.withDefaults()

	cb := newCallback(cfg.SilenceTimeout, handler, d.logger)
	streamCtx, cancel := context.WithCancel(ctx)

	dg, err := d.dial(streamCtx, d.apiKey, liveOptions(cfg), cb)
	if err != nil {
		cancel()
		cb.close()
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		cancel()
		cb.close()
		return nil, ErrConnect
	}
	if err := d.source.Start(); err != nil {
		cancel()
		dg.Stop()
		cb.close()
		return nil, fmt.Errorf("start audio source: %w", err)
	}

	h := &deepgramHandle{
		cancel:   cancel,
		source:   d.source,
		client:   dg,
		callback: cb,
		streamed: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   d.logger,
	}
	go func() {
		defer close(h.streamed)
		streamWithRetry(streamCtx, d.source, dg, sleepContext, func(format string, args ...any) {
			d.logger.Warn(fmt.Sprintf(format, args...))
		}, func(err error) {
			cb.emit(Failure(fmt.Errorf("audio stream: %w", err)))
		})
	}()
	return h, nil
}

type deepgramHandle struct {
	once     sync.Once
	cancel   context.CancelFunc
	source   Source
	client   liveClient
	callback *liveCallback
	streamed chan struct{}
	done     chan struct{}
	logger   *slog.Logger
}

func (h *deepgramHandle) Stop() <-chan struct{} {
	h.once.Do(func() {
		h.callback.close()
		h.cancel()
		go func() {
			defer close(h.done)
			if err := h.source.Stop(); err != nil {
				h.logger.Warn("audio source stop failed", "error", err)
			}
			select {
			case <-h.streamed:
			case <-time.After(stopGrace):
				h.logger.Warn("audio stream did not exit before stop grace period")
			}
			h.client.Stop()
		}()
	})
	return h.done
}

// liveCallback translates Deepgram live events into recognition events.
// Final transcript fragments are buffered until Deepgram reports the end of
// speech or the silence detector fires.
type liveCallback struct {
	// mu is held across handler calls so close waits for in-flight delivery.
	mu       sync.Mutex
	closed   bool
	handler  Handler
	buffer   *FragmentBuffer
	detector *Detector
	logger   *slog.Logger
}

func newCallback(silence time.Duration, handler Handler, logger *slog.Logger) *liveCallback {
	c := &liveCallback{
		handler:  handler,
		buffer:   NewFragmentBuffer(),
		detector: NewDetector(silence),
		logger:   logger,
	}
	c.detector.OnSilence(c.flush)
	return c
}

func (c *liveCallback) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.handler == nil {
		return
	}
	c.handler(ev)
}

func (c *liveCallback) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.detector.Stop()
}

func (c *liveCallback) flush() {
	c.detector.OnSpeech()
	text := c.buffer.Flush()
	if text == "" {
		return
	}
	c.emit(Final(text))
}

func (c *liveCallback) Message(mr *api.MessageResponse) error {
	if mr == nil || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	sentence := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)

	if !mr.IsFinal {
		if sentence != "" {
			c.detector.OnSpeech()
			c.emit(Partial(sentence))
		}
		return nil
	}

	if sentence != "" {
		c.buffer.Add(sentence)
	}
	if mr.SpeechFinal {
		c.flush()
		return nil
	}
	if c.buffer.Len() > 0 {
		c.detector.OnPause()
	}
	return nil
}

func (c *liveCallback) Open(*api.OpenResponse) error {
	c.logger.Info("connected to Deepgram")
	return nil
}

func (c *liveCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c *liveCallback) SpeechStarted(*api.SpeechStartedResponse) error {
	c.detector.OnSpeech()
	return nil
}

func (c *liveCallback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.flush()
	return nil
}

// Close fires when the websocket goes away. After our own Stop the callback
// is already closed and the event is dropped.
func (c *liveCallback) Close(*api.CloseResponse) error {
	c.logger.Info("disconnected from Deepgram")
	c.emit(Closed(errConnectionClosed))
	return nil
}

func (c *liveCallback) Error(er *api.ErrorResponse) error {
	if er == nil {
		return nil
	}
	c.emit(Failure(fmt.Errorf("deepgram error %s: %s", er.ErrCode, er.Description)))
	return nil
}

func (c *liveCallback) UnhandledEvent([]byte) error { return nil }
