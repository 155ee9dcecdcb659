// Package openai implements the OpenAI Chat Completions API provider.
// It also backs OpenAI-compatible services such as Groq.
package openai

import (
	"context"

	"github.com/anay-go/anay/pkg/core/types"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when the request does not name one.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxTokens is the default max tokens if not specified.
	DefaultMaxTokens = 1024
)

// Provider implements the OpenAI Chat Completions API.
type Provider struct {
	apiKey              string
	baseURL             string
	chatCompletionsPath string
	name                string
	defaultModel        string
	httpClient          httpDoer
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:              apiKey,
		baseURL:             DefaultBaseURL,
		chatCompletionsPath: "/chat/completions",
		name:                "openai",
		defaultModel:        DefaultModel,
		httpClient:          defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Generate sends a non-streaming chat completion request.
func (p *Provider) Generate(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	chatReq := p.buildRequest(req)

	respBody, err := p.doRequest(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	return p.parseResponse(respBody)
}
