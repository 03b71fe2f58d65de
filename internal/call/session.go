// Package call runs live voice calls with the tutor.
//
// A Session ties recognition, reply generation and playback together. Every
// transition happens under a single mutex, and every asynchronous callback
// carries the epoch it was issued under so that results arriving after End
// are dropped without effect.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/voice-tutor/internal/dialogue"
	"github.com/sjawhar/voice-tutor/internal/playback"
	"github.com/sjawhar/voice-tutor/internal/recognition"
	"github.com/sjawhar/voice-tutor/internal/transcript"
)

const DefaultGreeting = "Hello! I'm your tax tutor. Let's talk about {{topic}}. What would you like to know?"

type Config struct {
	Topic          string
	Language       string
	SilenceTimeout time.Duration
	SampleRate     int
	// ContextWindow is how many prior turns go with each generation request.
	ContextWindow int
	Greeting      string
}

func (c Config) withDefaults() Config {
	if c.ContextWindow <= 0 {
		c.ContextWindow = transcript.DefaultWindow
	}
	if strings.TrimSpace(c.Greeting) == "" {
		c.Greeting = DefaultGreeting
	}
	return c
}

func (c Config) greeting() string {
	return strings.ReplaceAll(c.Greeting, "{{topic}}", c.Topic)
}

// Deps are the collaborators a session drives.
type Deps struct {
	Recognizer recognition.Recognizer
	Playback   Playback
	Generator  Generator
	Events     EventBroadcaster
	Logger     *slog.Logger
}

type Session struct {
	id         string
	cfg        Config
	recognizer recognition.Recognizer
	playback   Playback
	generator  Generator
	events     EventBroadcaster
	logger     *slog.Logger
	history    *transcript.History

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	epoch       uint64
	handle      recognition.Handle
	starting    bool
	activeJob   *playback.Job
	pending     []transcript.Utterance
	dispatchSeq uint64
	startedAt   time.Time
	endedAt     time.Time
	stopped     chan struct{}
	onEnd       func(*Session)
}

func NewSession(id string, cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		cfg:        cfg.withDefaults(),
		recognizer: deps.Recognizer,
		playback:   deps.Playback,
		generator:  deps.Generator,
		events:     deps.Events,
		logger:     logger.With("call_id", id),
		history:    transcript.NewHistory(),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		stopped:    make(chan struct{}),
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Topic() string { return s.cfg.Topic }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// History returns a snapshot of every turn so far.
func (s *Session) History() []transcript.Utterance {
	return s.history.All()
}

// ActiveJob is the playback job currently holding the audio output, if any.
func (s *Session) ActiveJob() *playback.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeJob
}

// Done is closed once End has released every resource.
func (s *Session) Done() <-chan struct{} { return s.stopped }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		Topic:     s.cfg.Topic,
		State:     s.state,
		Epoch:     s.epoch,
		StartedAt: s.startedAt,
		History:   s.history.All(),
		Queued:    len(s.pending),
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// Start opens the recognition channel and speaks the greeting.
func (s *Session) Start() error {
	s.mu.Lock()
	switch {
	case s.state == StateEnded:
		s.mu.Unlock()
		return ErrCallEnded
	case s.state != StateIdle || s.starting:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.starting = true
	epoch := s.epoch
	s.mu.Unlock()

	handle, err := s.recognizer.Start(s.ctx, recognition.Config{
		Language:       s.cfg.Language,
		SilenceTimeout: s.cfg.SilenceTimeout,
		SampleRate:     s.cfg.SampleRate,
	}, s.recognitionHandler(epoch))

	s.mu.Lock()
	s.starting = false
	if s.state == StateEnded {
		// Ended while the channel was opening; End left the release to us.
		s.mu.Unlock()
		if handle != nil {
			<-handle.Stop()
		}
		s.release()
		return ErrCallEnded
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start recognition: %w", err)
	}
	defer s.mu.Unlock()

	s.handle = handle
	s.startedAt = time.Now().UTC()
	if s.events != nil {
		s.events.BroadcastCallStarted(s.id, s.cfg.Topic)
	}
	s.setState(StateListening)

	greeting := s.history.Append(transcript.SpeakerBot, s.cfg.greeting())
	s.broadcastUtterance(greeting)
	s.setState(StateSpeaking)
	s.speak(epoch, greeting.Text)
	return nil
}

// End stops the call. It is safe to call repeatedly and from several
// goroutines; later callers wait for the first to finish releasing resources.
//
// Done is closed only once the recognizer has acknowledged its stop. If ctx
// expires first, End returns the context error and the release completes in
// the background.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateEnded {
		stopped := s.stopped
		s.mu.Unlock()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.epoch++
	prev := s.state
	s.setState(StateEnded)
	handle := s.handle
	starting := s.starting
	s.pending = nil
	s.activeJob = nil
	s.cancel()
	s.mu.Unlock()

	s.logger.Info("call: ending", "from_state", prev)

	if s.playback != nil {
		s.playback.Stop()
	}

	if handle == nil {
		if starting {
			select {
			case <-s.stopped:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		s.release()
		return nil
	}
	ack := handle.Stop()
	select {
	case <-ack:
		s.release()
		return nil
	case <-ctx.Done():
		s.logger.Warn("call: recognition stop still pending, releasing once acknowledged")
		go func() {
			<-ack
			s.release()
		}()
		return fmt.Errorf("await recognition stop: %w", ctx.Err())
	}
}

// release runs once per session, after the recognition channel has stopped.
func (s *Session) release() {
	s.mu.Lock()
	s.handle = nil
	s.endedAt = time.Now().UTC()
	duration := time.Duration(0)
	if !s.startedAt.IsZero() {
		duration = s.endedAt.Sub(s.startedAt)
	}
	onEnd := s.onEnd
	s.mu.Unlock()
	close(s.stopped)

	turns := s.history.Len()
	if s.events != nil {
		s.events.BroadcastCallEnded(s.id, duration, turns)
	}
	if onEnd != nil {
		onEnd(s)
	}
}

func (s *Session) recognitionHandler(epoch uint64) recognition.Handler {
	return func(ev recognition.Event) {
		switch ev.Kind {
		case recognition.EventPartial:
			s.handlePartial(epoch, ev.Text)
		case recognition.EventFinal:
			s.handleFinal(epoch, ev.Text)
		case recognition.EventError:
			s.logger.Warn("call: recognition error", "error", ev.Err)
		case recognition.EventClosed:
			s.handleClosed(epoch, ev.Err)
		}
	}
}

// handleClosed ends the call when the recognition channel drops on its own.
func (s *Session) handleClosed(epoch uint64, err error) {
	s.mu.Lock()
	stale := s.stale(epoch)
	s.mu.Unlock()
	if stale {
		return
	}
	s.logger.Warn("call: recognition channel dropped, ending call", "error", err)
	// End waits for the recognizer, which may be the caller.
	go func() { _ = s.End(context.Background()) }()
}

func (s *Session) handlePartial(epoch uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(epoch) {
		return
	}
	if s.events != nil {
		s.events.BroadcastPartialTranscript(s.id, text)
	}
}

func (s *Session) handleFinal(epoch uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale(epoch) {
		s.logger.Debug("call: discarding stale recognition result")
		return
	}
	if !recognition.IsSpeech(text) {
		return
	}

	u := s.history.Append(transcript.SpeakerUser, strings.TrimSpace(text))
	s.broadcastUtterance(u)

	switch s.state {
	case StateListening:
		s.dispatch(u)
	case StateSpeaking:
		// Barge-in: silence the reply, then answer the new utterance.
		s.pending = append(s.pending, u)
		s.activeJob = nil
		s.playback.Stop()
		s.setState(StateListening)
		s.dispatchNext()
	default:
		s.pending = append(s.pending, u)
	}
}

// dispatch must be called with s.mu held.
func (s *Session) dispatch(u transcript.Utterance) {
	s.setState(StateDispatching)
	s.dispatchSeq++
	seq := s.dispatchSeq

	req := dialogue.Request{
		UtteranceText: u.Text,
		Context:       s.history.WindowBefore(u.Seq, s.cfg.ContextWindow),
		Topic:         s.cfg.Topic,
		Epoch:         s.epoch,
	}
	s.generator.Dispatch(s.ctx, req, func(res dialogue.Result) {
		s.handleGenerated(seq, res)
	})
}

// dispatchNext must be called with s.mu held while Listening.
func (s *Session) dispatchNext() {
	if len(s.pending) == 0 {
		return
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	s.dispatch(next)
}

func (s *Session) handleGenerated(seq uint64, res dialogue.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale(res.Epoch) || seq != s.dispatchSeq || s.state != StateDispatching {
		s.logger.Debug("call: discarding stale generation result")
		return
	}

	if res.Failed() {
		s.logger.Warn("call: reply generation failed", "error", res.Err)
		if s.events != nil {
			s.events.BroadcastGenerationFailed(s.id, res.Err.Error())
		}
		s.setState(StateListening)
		s.dispatchNext()
		return
	}

	reply := s.history.Append(transcript.SpeakerBot, res.Reply)
	s.broadcastUtterance(reply)
	s.setState(StateSpeaking)
	s.speak(s.epoch, reply.Text)
}

// speak must be called with s.mu held.
func (s *Session) speak(epoch uint64, text string) {
	s.activeJob = s.playback.Play(text, func(res playback.Result) {
		s.handlePlaybackDone(epoch, res)
	})
}

func (s *Session) handlePlaybackDone(epoch uint64, res playback.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale(epoch) || s.activeJob == nil || s.activeJob.ID != res.JobID {
		return
	}
	if res.Status == playback.StatusFailed {
		// The reply stays in history even though it was never heard.
		s.logger.Warn("call: reply playback failed", "job_id", res.JobID, "error", res.Err)
	}

	s.activeJob = nil
	s.setState(StateListening)
	s.dispatchNext()
}

// stale must be called with s.mu held.
func (s *Session) stale(epoch uint64) bool {
	return epoch != s.epoch || s.state == StateEnded
}

// setState must be called with s.mu held.
func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug("call: state changed", "from", s.state, "to", next)
	s.state = next
	if s.events != nil {
		s.events.BroadcastStateChanged(s.id, next)
	}
}

func (s *Session) broadcastUtterance(u transcript.Utterance) {
	if s.events != nil {
		s.events.BroadcastUtterance(s.id, u)
	}
}
