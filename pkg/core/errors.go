package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error shape returned by the HTTP API and carried on
// live session error frames.
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Param         string    `json:"param,omitempty"`
	Code          string    `json:"code,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
	RetryAfter    *int      `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", prefix, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

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
	ErrUnavailable    ErrorType = "unavailable_error"
)

func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message, Param: param}
}

func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

func NewRateLimitError(message string, retryAfter int) *Error {
	return &Error{Type: ErrRateLimit, Message: message, RetryAfter: &retryAfter}
}

func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}

// NewUnavailableError reports that a backing service (STT, TTS, LLM) is not
// configured for this deployment.
func NewUnavailableError(service string) *Error {
	return &Error{
		Type:    ErrUnavailable,
		Message: fmt.Sprintf("%s is not configured", service),
		Code:    "service_unavailable",
	}
}

// NewProviderError wraps an upstream failure from a named provider.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:          ErrProvider,
		Message:       fmt.Sprintf("%s: %v", provider, underlying),
		Provider:      provider,
		ProviderError: underlying,
	}
}

// IsRetryable reports whether retrying the same call may succeed.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}

// AsError returns the canonical error inside err, if any.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) && ce != nil {
		return ce, true
	}
	return nil, false
}
