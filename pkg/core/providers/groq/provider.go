// Package groq implements the Groq chat provider on top of its
// OpenAI-compatible endpoint.
package groq

import (
	"context"
	"net/http"

	"github.com/anay-go/anay/pkg/core/providers/openai"
	"github.com/anay-go/anay/pkg/core/types"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// Provider implements Groq using the OpenAI-compatible API.
type Provider struct {
	inner *openai.Provider
}

// Option configures the Groq provider.
type Option func(*config)

type config struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// New creates a new Groq provider.
func New(apiKey string, opts ...Option) *Provider {
	cfg := &config{baseURL: DefaultBaseURL, model: DefaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	innerOpts := []openai.Option{
		openai.WithBaseURL(cfg.baseURL),
		openai.WithName("groq"),
		openai.WithDefaultModel(cfg.model),
	}
	if cfg.httpClient != nil {
		innerOpts = append(innerOpts, openai.WithHTTPClient(cfg.httpClient))
	}

	return &Provider{inner: openai.New(apiKey, innerOpts...)}
}

func (p *Provider) Name() string { return "groq" }

func (p *Provider) Generate(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	return p.inner.Generate(ctx, req)
}
