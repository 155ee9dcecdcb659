package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anay-go/anay/pkg/core/types"
)

const (
	DefaultMaxSessions = 1_000
	DefaultSessionTTL  = 30 * time.Minute
)

// Manager hands out one Memory per session key, hydrating it from the Store
// on first use and writing every new message through. Cached sessions are
// bounded; an evicted session is hydrated again from the Store on its next
// use.
type Manager struct {
	store    Store
	maxPairs int
	logger   *slog.Logger

	maxSessions int
	sessionTTL  time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*cachedMemory
}

type cachedMemory struct {
	mem      *Memory
	lastSeen time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxSessions caps how many sessions are cached at once.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithSessionTTL sets how long an idle session stays cached.
func WithSessionTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.sessionTTL = d
		}
	}
}

// NewManager creates a manager. A nil store keeps history in memory only.
func NewManager(store Store, maxPairs int, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if store == nil {
		store = NopStore{}
	}
	if maxPairs <= 0 {
		maxPairs = DefaultPairs
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:       store,
		maxPairs:    maxPairs,
		logger:      logger,
		maxSessions: DefaultMaxSessions,
		sessionTTL:  DefaultSessionTTL,
		now:         time.Now,
		sessions:    make(map[string]*cachedMemory),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the memory for sessionKey. If the Store cannot be read the
// returned Memory is empty and not cached, so the next call retries.
func (m *Manager) Get(ctx context.Context, sessionKey string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if c, ok := m.sessions[sessionKey]; ok {
		c.lastSeen = now
		return c.mem
	}

	mem := New(m.maxPairs)
	msgs, err := m.store.Load(ctx, sessionKey, m.maxPairs*2)
	if err != nil {
		m.logger.Warn("memory hydrate failed", "session_key", sessionKey, "error", err)
		return mem
	}
	for _, msg := range msgs {
		mem.Add(msg)
	}

	if len(m.sessions) >= m.maxSessions {
		m.evictLocked(now)
	}
	m.sessions[sessionKey] = &cachedMemory{mem: mem, lastSeen: now}
	return mem
}

// evictLocked drops idle sessions, then the least recently used one if the
// cache is still full.
func (m *Manager) evictLocked(now time.Time) {
	for k, c := range m.sessions {
		if now.Sub(c.lastSeen) > m.sessionTTL {
			delete(m.sessions, k)
		}
	}
	if len(m.sessions) < m.maxSessions {
		return
	}
	var (
		oldestKey  string
		oldestSeen time.Time
		found      bool
	)
	for k, c := range m.sessions {
		if !found || c.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen, found = k, c.lastSeen, true
		}
	}
	if found {
		delete(m.sessions, oldestKey)
	}
}

// Sessions reports how many sessions are cached.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Append records msg in memory and in the store.
func (m *Manager) Append(ctx context.Context, sessionKey string, msg types.Message) {
	m.Get(ctx, sessionKey).Add(msg)
	if err := m.store.Append(ctx, sessionKey, msg); err != nil {
		m.logger.Warn("memory persist failed", "session_key", sessionKey, "error", err)
	}
}

// Clear forgets the session in memory and in the store.
func (m *Manager) Clear(ctx context.Context, sessionKey string) error {
	m.mu.Lock()
	if c, ok := m.sessions[sessionKey]; ok {
		c.mem.Clear()
	}
	m.mu.Unlock()
	return m.store.Clear(ctx, sessionKey)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
