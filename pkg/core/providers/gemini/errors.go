package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Error is a Gemini API failure with its HTTP status preserved.
type Error struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *Error) Error() string {
	if e.Status != "" {
		return "gemini: " + e.Status + ": " + e.Message
	}
	return "gemini: " + e.Message
}

// HTTPStatus returns the HTTP status of the failed call.
func (e *Error) HTTPStatus() int { return e.StatusCode }

// IsRateLimit reports whether Gemini rejected the call for quota reasons.
func (e *Error) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

func apiError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := apiError(err); ok {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.IsRateLimit()
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func wrapError(err error) error {
	if apiErr, ok := apiError(err); ok {
		return &Error{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	return err
}
