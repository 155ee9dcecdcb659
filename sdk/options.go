package anay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMultiplier      = 2.0
	DefaultMaxInterval     = 10 * time.Second
	DefaultMaxElapsed      = 2 * time.Minute
	defaultConnectTimeout  = 15 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultEventBuffer     = 256
)

type options struct {
	apiKey          string
	sessionKey      string
	header          http.Header
	dialer          *websocket.Dialer
	logger          *slog.Logger
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
	connectTimeout  time.Duration
	writeTimeout    time.Duration
	eventBuffer     int
}

func defaultOptions() options {
	return options{
		header:          make(http.Header),
		dialer:          websocket.DefaultDialer,
		logger:          slog.Default(),
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
		maxElapsed:      DefaultMaxElapsed,
		connectTimeout:  defaultConnectTimeout,
		writeTimeout:    defaultWriteTimeout,
		eventBuffer:     defaultEventBuffer,
	}
}

// Option configures a Session.
type Option func(*options)

// WithAPIKey sends key as a bearer token on every dial.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithSessionKey pins the conversation the server remembers. Dial picks a
// random key when none is set.
func WithSessionKey(key string) Option {
	return func(o *options) {
		o.sessionKey = key
	}
}

// WithHeader adds a header to every handshake.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.header.Add(key, value)
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBackoff sets the first and the largest delay between redials.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.initialInterval = initial
		}
		if maxInterval > 0 {
			o.maxInterval = maxInterval
		}
	}
}

// WithMaxElapsed bounds how long a single reconnect attempt may keep
// retrying. Zero retries forever; a negative value disables reconnects.
func WithMaxElapsed(d time.Duration) Option {
	return func(o *options) {
		o.maxElapsed = d
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}
