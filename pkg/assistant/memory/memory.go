// Package memory keeps bounded conversation history per session and
// optionally persists it.
package memory

import (
	"strings"
	"sync"

	"github.com/anay-go/anay/pkg/core/types"
)

// DefaultPairs is the number of user/assistant pairs kept by default.
const DefaultPairs = 10

// Memory is a bounded, concurrency-safe conversation history. It keeps the
// latest 2*maxPairs messages.
type Memory struct {
	mu       sync.RWMutex
	maxPairs int
	history  []types.Message
}

// New creates a memory holding up to maxPairs user/assistant pairs.
func New(maxPairs int) *Memory {
	if maxPairs <= 0 {
		maxPairs = DefaultPairs
	}
	return &Memory{maxPairs: maxPairs}
}

// AddUser appends a user message.
func (m *Memory) AddUser(text string) {
	m.add(types.UserMessage(text))
}

// AddAssistant appends an assistant message.
func (m *Memory) AddAssistant(text string) {
	m.add(types.AssistantMessage(text))
}

// Add appends an arbitrary message.
func (m *Memory) Add(msg types.Message) {
	m.add(msg)
}

func (m *Memory) add(msg types.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, msg)
	if limit := m.maxPairs * 2; len(m.history) > limit {
		trimmed := make([]types.Message, limit)
		copy(trimmed, m.history[len(m.history)-limit:])
		m.history = trimmed
	}
}

// Messages returns a copy of the history, oldest first.
func (m *Memory) Messages() []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Message, len(m.history))
	copy(out, m.history)
	return out
}

// Last returns up to n of the most recent messages.
func (m *Memory) Last(n int) []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || len(m.history) == 0 {
		return nil
	}
	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]types.Message, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// Context renders the history as "User: ..." / "Assistant: ..." lines.
func (m *Memory) Context() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.history))
	for _, msg := range m.history {
		role := "Assistant"
		if msg.Role == types.RoleUser {
			role = "User"
		}
		parts = append(parts, role+": "+msg.Content)
	}
	return strings.Join(parts, "\n")
}

// Clear drops all history.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}
