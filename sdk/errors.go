package anay

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/anay-go/anay/pkg/core"
)

// Error is the canonical API error returned by the server.
type Error = core.Error

// ErrNotConnected is returned by send methods while the session is
// reconnecting.
var ErrNotConnected = errors.New("anay: not connected")

// ErrClosed is returned by send methods after Close.
var ErrClosed = errors.New("anay: session closed")

// TransportError represents a failure to reach the server (DNS, refused
// connection, rejected handshake).
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from server error frames.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error during %s %s (status %d): %v", e.Op, redactURLUserInfo(e.URL), e.StatusCode, e.Err)
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// retryable reports whether redialing can succeed. Auth and bad-request
// rejections will not change on retry.
func (e *TransportError) retryable() bool {
	switch e.StatusCode {
	case 400, 401, 403, 404:
		return false
	}
	return true
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
