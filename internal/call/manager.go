package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RecordActive = "active"
	RecordEnded  = "ended"
	RecordFailed = "failed"
)

// Manager owns the single live call on this device.
type Manager struct {
	store    Store
	defaults Config
	deps     Deps
	logger   *slog.Logger
	newID    func() string

	mu     sync.Mutex
	active *Session
}

func NewManager(store Store, defaults Config, deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		defaults: defaults,
		deps:     deps,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// StartCall opens a call on topic, or the default topic when blank.
func (m *Manager) StartCall(topic string) (*Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = m.defaults.Topic
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrCallActive
	}
	cfg := m.defaults
	cfg.Topic = topic
	sess := NewSession(m.newID(), cfg, m.deps)
	sess.onEnd = m.finish
	m.active = sess
	m.mu.Unlock()

	startedAt := time.Now().UTC()
	if m.store != nil {
		if err := m.store.CreateCall(sess.ID(), topic, startedAt); err != nil {
			m.clear(sess)
			return nil, fmt.Errorf("create call record: %w", err)
		}
	}

	if err := sess.Start(); err != nil {
		m.clear(sess)
		// A call ended while opening was already recorded by finish.
		if m.store != nil && !errors.Is(err, ErrCallEnded) {
			if recErr := m.store.EndCall(sess.ID(), time.Now().UTC(), 0, RecordFailed); recErr != nil {
				m.logger.Warn("call: record start failure", "call_id", sess.ID(), "error", recErr)
			}
		}
		return nil, err
	}

	m.logger.Info("call: started", "call_id", sess.ID(), "topic", topic)
	return sess, nil
}

// EndCall ends the live call with the given id.
func (m *Manager) EndCall(ctx context.Context, id string) error {
	sess, ok := m.Get(id)
	if !ok {
		return ErrCallNotFound
	}
	return sess.End(ctx)
}

// Get returns the live call with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID() != id {
		return nil, false
	}
	return m.active, true
}

func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown ends the live call, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	sess := m.Active()
	if sess == nil {
		return nil
	}
	if err := sess.End(ctx); err != nil && !errors.Is(err, ErrCallEnded) {
		return err
	}
	return nil
}

func (m *Manager) finish(sess *Session) {
	m.clear(sess)

	if m.store == nil {
		return
	}
	snap := sess.Snapshot()
	endedAt := time.Now().UTC()
	if snap.EndedAt != nil {
		endedAt = *snap.EndedAt
	}
	if err := m.store.EndCall(sess.ID(), endedAt, len(snap.History), RecordEnded); err != nil {
		m.logger.Warn("call: record end failed", "call_id", sess.ID(), "error", err)
	}
	m.logger.Info("call: ended", "call_id", sess.ID(), "turns", len(snap.History))
}

func (m *Manager) clear(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == sess {
		m.active = nil
	}
}
