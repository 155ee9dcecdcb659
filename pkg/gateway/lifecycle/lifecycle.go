package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lifecycle holds the process drain state and the set of live sessions that
// must be warned and cancelled during graceful shutdown.
type Lifecycle struct {
	draining atomic.Bool

	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

// Handle lets the lifecycle reach a registered live session.
type Handle struct {
	Cancel func()
	Warn   func(code, message string) error
}

type trackedSession struct {
	handle Handle
	once   sync.Once
}

func New() *Lifecycle {
	return &Lifecycle{sessions: make(map[string]*trackedSession)}
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Register tracks a live session until the returned func is called.
// Registering an id twice replaces the previous entry.
func (l *Lifecycle) Register(sessionID string, h Handle) (unregister func()) {
	if l == nil {
		return func() {}
	}

	entry := &trackedSession{handle: h}

	l.mu.Lock()
	if l.sessions == nil {
		l.sessions = make(map[string]*trackedSession)
	}
	old := l.sessions[sessionID]
	l.sessions[sessionID] = entry
	l.wg.Add(1)
	l.mu.Unlock()

	if old != nil {
		l.unregister(sessionID, old)
	}

	return func() { l.unregister(sessionID, entry) }
}

func (l *Lifecycle) unregister(sessionID string, entry *trackedSession) {
	entry.once.Do(func() {
		l.mu.Lock()
		if l.sessions[sessionID] == entry {
			delete(l.sessions, sessionID)
		}
		l.mu.Unlock()
		l.wg.Done()
	})
}

func (l *Lifecycle) LiveSessions() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// WarnAll sends a best-effort warning to every live session.
func (l *Lifecycle) WarnAll(code, message string) (sent int) {
	if l == nil {
		return 0
	}
	for _, h := range l.handles() {
		if h.Warn == nil {
			continue
		}
		_ = h.Warn(code, message)
		sent++
	}
	return sent
}

func (l *Lifecycle) CancelAll() (canceled int) {
	if l == nil {
		return 0
	}
	for _, h := range l.handles() {
		if h.Cancel == nil {
			continue
		}
		h.Cancel()
		canceled++
	}
	return canceled
}

func (l *Lifecycle) handles() []Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Handle, 0, len(l.sessions))
	for _, entry := range l.sessions {
		out = append(out, entry.handle)
	}
	return out
}

// Wait blocks until every registered session has unregistered or ctx ends.
func (l *Lifecycle) Wait(ctx context.Context) bool {
	if l == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
