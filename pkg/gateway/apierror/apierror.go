package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/providers/gemini"
	"github.com/anay-go/anay/pkg/core/providers/openai"
	"github.com/anay-go/anay/pkg/core/voice/stt"
	"github.com/anay-go/anay/pkg/core/voice/tts"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical. Provider errors wrapped by core.NewProviderError fall
	// through to the upstream mapping so their status survives.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil && coreErr.Type != core.ErrProvider {
		out := *coreErr
		out.RequestID = requestID
		out.ProviderError = nil
		return &out, StatusFromType(coreErr.Type)
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) && openaiErr != nil {
		provider := openaiErr.Provider
		if provider == "" {
			provider = "openai"
		}
		out, status := fromUpstream(provider, openaiErr.StatusCode, openaiErr.Message, requestID)
		out.Code = openaiErr.Code
		out.RetryAfter = openaiErr.RetryAfter
		return out, status
	}

	var geminiErr *gemini.Error
	if errors.As(err, &geminiErr) && geminiErr != nil {
		out, status := fromUpstream("gemini", geminiErr.StatusCode, geminiErr.Message, requestID)
		out.Code = geminiErr.Status
		return out, status
	}

	var sttErr *stt.Error
	if errors.As(err, &sttErr) && sttErr != nil {
		out, status := fromUpstream("deepgram", sttErr.StatusCode, sttErr.Message, requestID)
		out.Code = sttErr.Code
		return out, status
	}

	var ttsErr *tts.Error
	if errors.As(err, &ttsErr) && ttsErr != nil {
		out, status := fromUpstream("elevenlabs", ttsErr.StatusCode, ttsErr.Message, requestID)
		out.Code = ttsErr.Status
		return out, status
	}

	if coreErr != nil {
		return &core.Error{
			Type:      core.ErrProvider,
			Message:   coreErr.Message,
			Provider:  coreErr.Provider,
			RequestID: requestID,
		}, http.StatusBadGateway
	}

	// Unknown errors: treat as internal API error (do not leak details by default).
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// fromUpstream maps a third-party HTTP failure onto the gateway's taxonomy.
// Upstream auth failures are the gateway's own misconfiguration, so callers
// see a provider error rather than a 401.
func fromUpstream(provider string, status int, message, requestID string) (*core.Error, int) {
	out := &core.Error{
		Message:   message,
		Provider:  provider,
		RequestID: requestID,
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		out.Type = core.ErrInvalidRequest
		return out, http.StatusBadRequest
	case status == http.StatusTooManyRequests:
		out.Type = core.ErrRateLimit
		return out, http.StatusTooManyRequests
	case status == http.StatusServiceUnavailable || status == 529:
		out.Type = core.ErrOverloaded
		return out, 529
	default:
		out.Type = core.ErrProvider
		return out, http.StatusBadGateway
	}
}

func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return 529
	case core.ErrUnavailable:
		return http.StatusServiceUnavailable
	case core.ErrProvider:
		return http.StatusBadGateway
	case core.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
