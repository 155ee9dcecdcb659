package openai

import (
	"strings"

	"github.com/anay-go/anay/pkg/core/types"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *Provider) buildRequest(req *types.ChatRequest) *chatRequest {
	model := stripProviderPrefix(req.Model)
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &chatRequest{
		Model:       model,
		Messages:    translateMessages(req.Messages, req.System),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
}

// translateMessages puts the system prompt first and drops empty turns.
func translateMessages(messages []types.Message, system string) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if s := strings.TrimSpace(system); s != "" {
		out = append(out, chatMessage{Role: "system", Content: s})
	}
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		switch m.Role {
		case types.RoleAssistant:
			role = "assistant"
		case types.RoleSystem:
			role = "system"
		}
		out = append(out, chatMessage{Role: role, Content: m.Content})
	}
	return out
}

func stripProviderPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
