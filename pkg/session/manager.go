package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/fdw-bridge/pkg/fdw"
	"github.com/txn2/fdw-bridge/pkg/registry"
)

const defaultTTL = 30 * time.Minute

// Manager tracks sessions and lazily materializes adapter instances
// through the table registry. A materialized instance is returned
// unchanged on every later access by the same (session, table)
// pairing, so repeated callbacks resolve to the same state.
type Manager struct {
	mu       sync.Mutex
	registry *registry.Registry
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
}

// NewManager creates a session manager over a table registry. A zero
// ttl selects the default.
func NewManager(reg *registry.Registry, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl == 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: reg,
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// Open establishes a new session and returns its ID.
func (m *Manager) Open(_ context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(m.ttl),
		adapters:     make(map[string]fdw.ForeignData),
	}
	m.sessions[sess.ID] = sess
	m.logger.Debug("session opened", "session_id", sess.ID)
	return sess.ID
}

// Adapter returns the session's adapter instance for a table,
// constructing it on first use. The returned descriptor is the
// read-only view the adapter was bound with.
func (m *Manager) Adapter(_ context.Context, sessionID, table string) (fdw.ForeignData, *fdw.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, nil, fmt.Errorf("session %s: %w", sessionID, fdw.ErrNotFound)
	}

	binding, err := m.registry.Resolve(table)
	if err != nil {
		return nil, nil, err
	}

	name := binding.Descriptor.QualifiedName()
	if adapter, ok := sess.adapters[name]; ok {
		m.touchLocked(sess)
		return adapter, binding.Descriptor, nil
	}

	adapter, err := binding.Factory(binding.Descriptor)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s backend for %s: %w", binding.Kind, name, err)
	}

	sess.adapters[name] = adapter
	m.touchLocked(sess)
	m.logger.Debug("adapter materialized", "session_id", sessionID, "table", name, "backend", binding.Kind)
	return adapter, binding.Descriptor, nil
}

// Touch extends a session's expiry.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		m.touchLocked(sess)
	}
}

func (m *Manager) touchLocked(sess *Session) {
	now := time.Now()
	sess.LastActiveAt = now
	sess.ExpiresAt = now.Add(m.ttl)
}

// CloseSession tears down a session, closing every adapter instance it
// materialized. Teardown is best effort: all instances are closed even
// when some report errors.
func (m *Manager) CloseSession(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return closeAdapters(sess)
}

// Cleanup removes expired sessions and closes their adapters.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	now := time.Now()
	var expired []*Session
	for id, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, sess := range expired {
		if err := closeAdapters(sess); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close tears down every remaining session.
func (m *Manager) Close() error {
	m.mu.Lock()
	remaining := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		remaining = append(remaining, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, sess := range remaining {
		if err := closeAdapters(sess); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeAdapters(sess *Session) error {
	var errs []error
	for name, adapter := range sess.adapters {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing adapter for %s: %w", name, err))
		}
	}
	sess.adapters = make(map[string]fdw.ForeignData)
	return errors.Join(errs...)
}
