package anay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/live/protocol"
)

// Session is a live conversation with the server that survives dropped
// connections. It is safe for concurrent use.
type Session struct {
	url  string
	opts options

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	done   chan struct{}

	connMu    sync.Mutex
	conn      *websocket.Conn
	sessionID string

	writeMu   sync.Mutex
	audioSeq  atomic.Int64
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Dial connects to the live socket at rawURL (ws, wss, http or https) and
// waits for the server's ready frame. ctx bounds the handshake only; the
// session lives until Close or until reconnecting gives up.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionKey == "" {
		o.sessionKey = uuid.NewString()
	}

	target, err := sessionURL(rawURL, o.sessionKey)
	if err != nil {
		return nil, err
	}

	conn, ready, err := dialOnce(ctx, target, o)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		url:       target,
		opts:      o,
		ctx:       sctx,
		cancel:    cancel,
		events:    make(chan Event, o.eventBuffer),
		done:      make(chan struct{}),
		conn:      conn,
		sessionID: ready.Ready.SessionID,
	}
	s.events <- ready
	go s.run(conn)
	return s, nil
}

// sessionURL normalizes rawURL to a websocket URL carrying sessionKey.
func sessionURL(rawURL, sessionKey string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/ws"
	}
	q := u.Query()
	q.Set("session_key", sessionKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func dialOnce(ctx context.Context, target string, o options) (*websocket.Conn, ReadyEvent, error) {
	headers := o.header.Clone()
	if o.apiKey != "" {
		headers.Set("Authorization", "Bearer "+o.apiKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()

	conn, resp, err := o.dialer.DialContext(dialCtx, target, headers)
	if err != nil {
		te := &TransportError{Op: http.MethodGet, URL: target, Err: err}
		if resp != nil {
			te.StatusCode = resp.StatusCode
		}
		return nil, ReadyEvent{}, te
	}

	_ = conn.SetReadDeadline(time.Now().Add(o.connectTimeout))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, ReadyEvent{}, &TransportError{Op: "read ready", URL: target, Err: err}
	}
	_ = conn.SetReadDeadline(time.Time{})
	if messageType != websocket.TextMessage {
		_ = conn.Close()
		return nil, ReadyEvent{}, fmt.Errorf("unexpected first frame type %d", messageType)
	}

	first, err := decodeEvent(payload)
	if err != nil {
		_ = conn.Close()
		return nil, ReadyEvent{}, err
	}
	switch e := first.(type) {
	case ReadyEvent:
		return conn, e, nil
	case ErrorEvent:
		_ = conn.Close()
		return nil, ReadyEvent{}, &core.Error{
			Type:    core.ErrAPI,
			Message: strings.TrimSpace(e.Error.Message),
			Code:    strings.TrimSpace(e.Error.Code),
		}
	default:
		_ = conn.Close()
		return nil, ReadyEvent{}, fmt.Errorf("unexpected first frame %q", first.eventType())
	}
}

// Events yields server frames plus connection state changes. It closes
// after Close or once reconnecting gives up.
func (s *Session) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

// SessionID is the server's id for the current connection. It changes on
// every reconnect; the session key does not.
func (s *Session) SessionID() string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.sessionID
}

func (s *Session) SessionKey() string { return s.opts.sessionKey }

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// SendText submits a typed turn.
func (s *Session) SendText(text string) error {
	return s.sendJSON(protocol.ClientText{Type: "text", Text: text})
}

// SendAudio streams one chunk of PCM16 16 kHz mono microphone audio.
func (s *Session) SendAudio(pcm []byte) error {
	return s.sendJSON(protocol.ClientAudioChunk{
		Type:    "audio_chunk",
		Seq:     s.audioSeq.Add(1),
		DataB64: encodeBase64(pcm),
	})
}

// EndAudio commits the utterance streamed with SendAudio.
func (s *Session) EndAudio() error {
	return s.sendJSON(protocol.ClientAudioEnd{Type: "audio_end"})
}

// SendAudioBlob submits a complete recording as one turn.
func (s *Session) SendAudioBlob(audio []byte, format string) error {
	return s.sendJSON(protocol.ClientAudioBlob{Type: "audio_blob", Format: format, DataB64: encodeBase64(audio)})
}

// Control sends one of the protocol.Op* operations.
func (s *Session) Control(op string) error {
	return s.sendJSON(protocol.ClientControl{Type: "control", Op: strings.TrimSpace(op)})
}

// UpdateSettings changes speech output for this connection. A nil speak
// keeps the current value.
func (s *Session) UpdateSettings(speak *bool, voiceID string) error {
	return s.sendJSON(protocol.ClientSettings{Type: "settings", Speak: speak, VoiceID: voiceID})
}

func (s *Session) sendJSON(v any) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	if s.closed.Load() {
		return ErrClosed
	}
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.writeTimeout))
	return conn.WriteJSON(v)
}

// Close ends the session and waits for its goroutine to exit.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()

		s.connMu.Lock()
		conn := s.conn
		s.conn = nil
		s.connMu.Unlock()
		if conn != nil {
			s.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
			s.writeMu.Unlock()
			_ = conn.Close()
		}
	})
	<-s.done
	return nil
}

func (s *Session) run(conn *websocket.Conn) {
	defer close(s.done)
	defer close(s.events)

	for {
		err := s.readLoop(conn)
		_ = conn.Close()
		s.swapConn(conn, nil, "")
		if s.closed.Load() || s.ctx.Err() != nil {
			return
		}

		s.opts.logger.Warn("anay connection lost", "session_key", s.opts.sessionKey, "error", err)
		if s.opts.maxElapsed < 0 {
			s.fail(err)
			return
		}
		if !s.emit(DisconnectedEvent{Err: err}) {
			return
		}

		next, ready, attempts, err := s.reconnect()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}
		if !s.swapConn(nil, next, ready.Ready.SessionID) {
			_ = next.Close()
			return
		}
		s.opts.logger.Info("anay reconnected", "session_key", s.opts.sessionKey, "attempts", attempts)
		if !s.emit(ReconnectedEvent{Attempts: attempts, SessionID: ready.Ready.SessionID}) || !s.emit(ready) {
			return
		}
		conn = next
	}
}

// swapConn replaces old with next. It refuses a new connection once the
// session is closed.
func (s *Session) swapConn(old, next *websocket.Conn, sessionID string) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if next != nil {
		if s.closed.Load() {
			return false
		}
		s.conn = next
		s.sessionID = sessionID
		return true
	}
	if s.conn == old {
		s.conn = nil
	}
	return true
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		event, err := decodeEvent(data)
		if err != nil {
			s.opts.logger.Warn("anay frame dropped", "error", err)
			continue
		}
		if !s.emit(event) {
			return s.ctx.Err()
		}
	}
}

func (s *Session) reconnect() (*websocket.Conn, ReadyEvent, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.initialInterval
	b.Multiplier = DefaultMultiplier
	b.MaxInterval = s.opts.maxInterval
	b.MaxElapsedTime = s.opts.maxElapsed
	b.Reset()

	var (
		conn     *websocket.Conn
		ready    ReadyEvent
		attempts int
	)
	op := func() error {
		attempts++
		c, r, err := dialOnce(s.ctx, s.url, s.opts)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) && !te.retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		conn, ready = c, r
		return nil
	}
	notify := func(err error, next time.Duration) {
		s.opts.logger.Debug("anay reconnect attempt failed", "attempt", attempts, "retry_in", next, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, s.ctx), notify); err != nil {
		return nil, ReadyEvent{}, attempts, err
	}
	return conn, ready, attempts, nil
}

// emit delivers event unless the session is closing.
func (s *Session) emit(event Event) bool {
	select {
	case s.events <- event:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) fail(err error) {
	if err == nil {
		err = errors.New("connection lost")
	}
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.opts.logger.Error("anay session ended", "session_key", s.opts.sessionKey, "error", err)
	s.emit(DisconnectedEvent{Err: err, Final: true})
}
