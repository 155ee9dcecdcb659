// Package types holds the conversation shapes shared by providers, the
// assistant pipeline and the gateway.
package types

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UserMessage is shorthand for a user-authored message stamped now.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Timestamp: time.Now().UTC()}
}

// AssistantMessage is shorthand for an assistant-authored message stamped now.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text, Timestamp: time.Now().UTC()}
}

// ChatRequest is a provider-neutral completion request. Messages are ordered
// oldest first and normally end with the user's turn.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// StopReason explains why generation ended.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonSafety    StopReason = "safety"
	StopReasonOther     StopReason = "other"
)

// Usage reports token accounting when the provider returns it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatResponse is a provider-neutral completion result.
type ChatResponse struct {
	Text       string     `json:"text"`
	Model      string     `json:"model"`
	Provider   string     `json:"provider"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	Usage      Usage      `json:"usage"`
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 { return &v }

// LastUserText returns the content of the last user message, if any.
func (r *ChatRequest) LastUserText() string {
	if r == nil {
		return ""
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return strings.TrimSpace(r.Messages[i].Content)
		}
	}
	return ""
}
