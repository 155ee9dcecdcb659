package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const liveCloseWait = 2 * time.Second

// NewLiveStream opens a Deepgram live transcription socket for 16-bit
// linear PCM.
func (d *DeepgramProvider) NewLiveStream(ctx context.Context, opts TranscribeOptions) (LiveStream, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = "/v1/listen"

	lang := opts.Language
	if lang == "" {
		lang = "en-US"
	}
	q := url.Values{}
	q.Set("model", modelOr(opts.Model))
	q.Set("language", lang)
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", itoa(sampleRateOr(opts.SampleRate)))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			if len(body) > 0 {
				return nil, fmt.Errorf("deepgram websocket connect (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			return nil, fmt.Errorf("deepgram websocket connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram websocket connect: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &deepgramLiveStream{
		conn:      conn,
		deltas:    make(chan TranscriptDelta, 64),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		keepAlive: d.keepAlive,
	}
	s.touch()

	go s.readLoop()
	go s.keepAliveLoop()
	return s, nil
}

type deepgramLiveStream struct {
	conn      *websocket.Conn
	deltas    chan TranscriptDelta
	done      chan struct{}
	closed    atomic.Bool
	writeMu   sync.Mutex
	lastSend  atomic.Int64
	keepAlive time.Duration
	ctx       context.Context
	cancel    context.CancelFunc

	errMu sync.Mutex
	err   error
}

type deepgramLiveMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []deepgramAlternative `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func (s *deepgramLiveStream) readLoop() {
	defer func() {
		close(s.deltas)
		close(s.done)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(err)
			}
			return
		}

		var msg deepgramLiveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			text := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)
			if text == "" {
				continue
			}
			delta := TranscriptDelta{Text: text, IsFinal: msg.IsFinal, SpeechFinal: msg.SpeechFinal}
			select {
			case s.deltas <- delta:
			case <-s.ctx.Done():
				return
			}
		case "Error":
			reason := msg.Description
			if reason == "" {
				reason = msg.Message
			}
			s.setErr(fmt.Errorf("deepgram: %s", reason))
			return
		}
	}
}

func (s *deepgramLiveStream) keepAliveLoop() {
	interval := s.keepAlive
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, s.lastSend.Load()))
			if idle < interval {
				continue
			}
			if err := s.writeControl("KeepAlive"); err != nil {
				return
			}
		}
	}
}

func (s *deepgramLiveStream) touch() {
	s.lastSend.Store(time.Now().UnixNano())
}

func (s *deepgramLiveStream) writeControl(kind string) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.touch()
	return s.conn.WriteJSON(map[string]string{"type": kind})
}

// SendAudio forwards raw PCM.
func (s *deepgramLiveStream) SendAudio(data []byte) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if len(data) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.touch()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Finalize flushes buffered audio into final results.
func (s *deepgramLiveStream) Finalize() error {
	return s.writeControl("Finalize")
}

func (s *deepgramLiveStream) Deltas() <-chan TranscriptDelta {
	return s.deltas
}

func (s *deepgramLiveStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *deepgramLiveStream) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Close sends CloseStream and waits briefly for the server to finish.
func (s *deepgramLiveStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(liveCloseWait))
	_ = s.conn.WriteJSON(map[string]string{"type": "CloseStream"})
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(liveCloseWait):
	}
	s.cancel()
	return s.conn.Close()
}
