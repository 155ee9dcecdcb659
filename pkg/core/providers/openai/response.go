package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anay-go/anay/pkg/core/types"
)

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *Provider) parseResponse(body []byte) (*types.ChatResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Type: ErrProvider, Message: "response contained no choices", Provider: p.name}
	}

	choice := resp.Choices[0]
	return &types.ChatResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		Model:      p.name + "/" + resp.Model,
		Provider:   p.name,
		StopReason: mapFinishReason(choice.FinishReason),
		Usage: types.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func mapFinishReason(reason string) types.StopReason {
	switch reason {
	case "stop":
		return types.StopReasonEndTurn
	case "length":
		return types.StopReasonMaxTokens
	case "content_filter":
		return types.StopReasonSafety
	default:
		return types.StopReasonOther
	}
}
