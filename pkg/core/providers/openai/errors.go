package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"
)

// Error is an error returned by an OpenAI-compatible API.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	Param      string    `json:"param,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	StatusCode int       `json:"-"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	name := e.Provider
	if name == "" {
		name = "openai"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s (code: %s)", name, e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", name, e.Type, e.Message)
}

// HTTPStatus returns the HTTP status of the failed call.
func (e *Error) HTTPStatus() int { return e.StatusCode }

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param,omitempty"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}

func (p *Provider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	out := &Error{
		Type:       ErrProvider,
		Message:    strings.TrimSpace(string(body)),
		Provider:   p.name,
		StatusCode: resp.StatusCode,
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		out.Message = parsed.Error.Message
		out.Param = parsed.Error.Param
		if parsed.Error.Code != nil {
			out.Code = fmt.Sprint(parsed.Error.Code)
		}
		switch parsed.Error.Type {
		case "invalid_request_error":
			out.Type = ErrInvalidRequest
		case "authentication_error":
			out.Type = ErrAuthentication
		case "permission_error", "insufficient_quota":
			out.Type = ErrPermission
		case "not_found_error":
			out.Type = ErrNotFound
		case "rate_limit_error":
			out.Type = ErrRateLimit
		case "server_error", "api_error":
			out.Type = ErrAPI
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		out.Type = ErrAuthentication
	case http.StatusTooManyRequests:
		out.Type = ErrRateLimit
	case http.StatusServiceUnavailable:
		out.Type = ErrOverloaded
	}
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			out.RetryAfter = &secs
		}
	}
	if out.Message == "" {
		out.Message = http.StatusText(resp.StatusCode)
	}
	return out
}
