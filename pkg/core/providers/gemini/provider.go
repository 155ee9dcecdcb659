// Package gemini implements the Google Gemini provider using the genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/anay-go/anay/pkg/core/types"
)

const (
	DefaultModel = "gemini-2.0-flash"

	// DefaultMaxAttempts bounds how often a rate-limited call is tried.
	DefaultMaxAttempts = 3
	// DefaultRetryBase is the first backoff delay; each retry doubles it.
	DefaultRetryBase = time.Second
)

// ErrEmptyResponse is returned when Gemini answers with no usable candidate.
var ErrEmptyResponse = errors.New("gemini: empty response")

// generator is the slice of *genai.Models the provider needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements core.Provider for Gemini.
type Provider struct {
	client      *genai.Client
	models      generator
	model       string
	maxAttempts int
	retryBase   time.Duration
	logger      *slog.Logger
}

// Option configures the Gemini provider.
type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithRetry overrides the 429 retry policy.
func WithRetry(maxAttempts int, base time.Duration) Option {
	return func(p *Provider) {
		if maxAttempts > 0 {
			p.maxAttempts = maxAttempts
		}
		if base > 0 {
			p.retryBase = base
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func withGenerator(g generator) Option {
	return func(p *Provider) { p.models = g }
}

// New creates a Gemini provider backed by the Gemini Developer API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p := newProvider(append([]Option{withGenerator(client.Models)}, opts...)...)
	p.client = client
	return p, nil
}

func newProvider(opts ...Option) *Provider {
	p := &Provider{
		model:       DefaultModel,
		maxAttempts: DefaultMaxAttempts,
		retryBase:   DefaultRetryBase,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "gemini" }

// Generate sends the conversation to Gemini. Rate-limit responses are
// retried with exponential backoff; every other failure returns at once.
func (p *Provider) Generate(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	model := p.model
	if m := stripProviderPrefix(req.Model); m != "" {
		model = m
	}
	contents := buildContents(req.Messages)
	if len(contents) == 0 {
		return nil, errors.New("gemini: request has no messages")
	}
	config := buildConfig(req)

	var resp *genai.GenerateContentResponse
	attempt := 0
	op := func() error {
		attempt++
		out, err := p.models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			if isRateLimited(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("gemini rate limited, retrying",
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, p.retryPolicy(ctx), notify); err != nil {
		return nil, wrapError(err)
	}
	return parseResponse(resp, model)
}

func (p *Provider) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.retryBase * 8
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxAttempts-1)), ctx)
}

func buildContents(messages []types.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" || m.Role == types.RoleSystem {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func buildConfig(req *types.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

func parseResponse(resp *genai.GenerateContentResponse, model string) (*types.ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	out := &types.ChatResponse{
		Text:       text,
		Model:      "gemini/" + model,
		Provider:   "gemini",
		StopReason: mapFinishReason(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = types.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	return out, nil
}

func mapFinishReason(reason genai.FinishReason) types.StopReason {
	switch reason {
	case genai.FinishReasonStop:
		return types.StopReasonEndTurn
	case genai.FinishReasonMaxTokens:
		return types.StopReasonMaxTokens
	case genai.FinishReasonSafety:
		return types.StopReasonSafety
	default:
		return types.StopReasonOther
	}
}

func stripProviderPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
