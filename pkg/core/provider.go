package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anay-go/anay/pkg/core/types"
)

// Provider is implemented by every LLM backend the assistant can talk to.
type Provider interface {
	// Name returns the provider identifier (e.g. "gemini", "groq").
	Name() string

	// Generate produces a single, non-streaming reply.
	Generate(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error)
}

// ParseModelString splits "provider/model" into its parts.
func ParseModelString(model string) (provider, name string, err error) {
	model = strings.TrimSpace(model)
	idx := strings.Index(model, "/")
	if idx <= 0 || idx == len(model)-1 {
		return "", "", fmt.Errorf("invalid model %q: expected provider/model", model)
	}
	return strings.ToLower(model[:idx]), model[idx+1:], nil
}

// HTTPStatus returns the upstream HTTP status carried by err, or 0 when err
// did not come from an HTTP response.
func HTTPStatus(err error) int {
	var s interface{ HTTPStatus() int }
	if errors.As(err, &s) {
		return s.HTTPStatus()
	}
	return 0
}
