package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/anay-go/anay/pkg/assistant"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/core/audio"
	"github.com/anay-go/anay/pkg/core/voice/stt"
	"github.com/anay-go/anay/pkg/core/voice/tts"
	"github.com/anay-go/anay/pkg/gateway/limits"
	"github.com/anay-go/anay/pkg/gateway/live/protocol"
	"github.com/anay-go/anay/pkg/gateway/metrics"
)

const (
	maxCanceledTurnIDs        = 64
	outboundPriorityQueueSize = 8
	defaultFinalizeWait       = 1500 * time.Millisecond
)

var errBackpressure = errors.New("live outbound backpressure")

// Assistant is the turn pipeline a live session drives.
type Assistant interface {
	Respond(ctx context.Context, sessionKey, text string) (*assistant.Reply, error)
	Speak(ctx context.Context, text, voiceID string) (*tts.SynthesisStream, error)
	Transcribe(ctx context.Context, audio io.Reader, format string) (*stt.Transcript, error)
	NewLiveTranscription(ctx context.Context) (stt.LiveStream, error)
	ClearHistory(ctx context.Context, sessionKey string) error
	SystemInfo(ctx context.Context) sysmon.Info
	Capabilities() assistant.Capabilities
}

type Config struct {
	MaxAudioFrameBytes         int
	MaxAudioBytes              int64
	MaxTextBytes               int
	MaxMessageBytes            int64
	LiveMaxAudioFPS            int
	LiveMaxAudioBytesPerSecond int64
	LiveInboundBurstSeconds    int
	PingInterval               time.Duration
	WriteTimeout               time.Duration
	ReadTimeout                time.Duration
	MaxSessionDuration         time.Duration
	TurnTimeout                time.Duration
	OutboundQueueSize          int
	DefaultVoiceID             string
	// FinalizeWait bounds how long audio_end waits for the last final
	// transcript before committing what it has.
	FinalizeWait time.Duration
}

type Dependencies struct {
	Conn       *websocket.Conn
	Assistant  Assistant
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	SessionID  string
	SessionKey string
	RequestID  string
	Config     Config
	Now        func() time.Time
}

type LiveSession struct {
	conn       *websocket.Conn
	assistant  Assistant
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sessionID  string
	sessionKey string
	requestID  string
	cfg        Config
	caps       assistant.Capabilities
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	canceledTurns atomic.Value // canceledTurnState
	turnCounter   atomic.Int64

	speak   atomic.Bool
	voiceMu sync.Mutex
	voiceID string

	turnMu sync.Mutex
	turn   *activeTurn
	tasks  sync.WaitGroup
}

type canceledTurnState struct {
	set   map[string]struct{}
	order []string
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

// utterance is the spoken input being assembled from live transcription.
type utterance struct {
	stream      stt.LiveStream
	deltas      <-chan stt.TranscriptDelta
	unavailable bool
	listening   bool
	finalText   []string
	awaitingEnd bool
	timer       *time.Timer
	timerC      <-chan time.Time
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Assistant == nil {
		return nil, fmt.Errorf("assistant is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.FinalizeWait <= 0 {
		deps.Config.FinalizeWait = defaultFinalizeWait
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if strings.TrimSpace(deps.SessionKey) == "" {
		deps.SessionKey = deps.SessionID
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &LiveSession{
		conn:             deps.Conn,
		assistant:        deps.Assistant,
		logger:           deps.Logger,
		metrics:          deps.Metrics,
		sessionID:        deps.SessionID,
		sessionKey:       deps.SessionKey,
		requestID:        deps.RequestID,
		cfg:              deps.Config,
		caps:             deps.Assistant.Capabilities(),
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, max(1, min(deps.Config.OutboundQueueSize, outboundPriorityQueueSize))),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		voiceID:          strings.TrimSpace(deps.Config.DefaultVoiceID),
	}
	s.speak.Store(s.caps.TTS)
	s.canceledTurns.Store(canceledTurnState{set: make(map[string]struct{})})
	return s, nil
}

// Run serves the socket until the client disconnects, the session expires
// or Cancel is called.
func (s *LiveSession) Run() error {
	defer s.cancel()

	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 64)
	var g errgroup.Group
	g.Go(func() error {
		w := outboundWriter{
			ws:         s.conn,
			ctx:        s.ctx,
			cfg:        s.cfg,
			priority:   s.outboundPriority,
			normal:     s.outboundNormal,
			isCanceled: s.isTurnCanceled,
		}
		err := w.Run()
		if err != nil {
			s.cancel()
			_ = s.conn.Close()
		}
		return err
	})
	g.Go(func() error {
		s.readLoop(readCh)
		return nil
	})

	var expiry <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxSessionDuration)
		defer timer.Stop()
		expiry = timer.C
	}

	limiter := newInboundAudioLimiter(s.now, s.cfg.LiveMaxAudioFPS, s.cfg.LiveMaxAudioBytesPerSecond, s.cfg.LiveInboundBurstSeconds)
	utt := &utterance{}

	_ = s.sendJSONPriority(protocol.ServerReady{
		Type:            "ready",
		SessionID:       s.sessionID,
		ProtocolVersion: protocol.ProtocolVersion1,
		Speak:           s.speak.Load(),
		STT:             s.caps.STT,
		LLM:             s.caps.LLM,
		TTS:             s.caps.TTS,
	})
	_ = s.sendStatus(protocol.StateIdle)

	for {
		select {
		case <-s.ctx.Done():
			return s.shutdown(&g, utt)
		case <-expiry:
			_ = s.sendSessionError("session_expired", "maximum session duration reached", true)
			return s.shutdown(&g, utt)
		case frame, ok := <-readCh:
			if !ok || frame.err != nil {
				if frame.err != nil && websocket.IsUnexpectedCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					s.logger.Debug("live read ended", "session_id", s.sessionID, "error", frame.err)
				}
				return s.shutdown(&g, utt)
			}
			if err := s.handleFrame(frame, limiter, utt); err != nil {
				return s.shutdown(&g, utt)
			}
		case delta, ok := <-utt.deltas:
			if !ok {
				s.handleTranscriptionEnded(utt)
				continue
			}
			s.handleDelta(utt, delta)
		case <-utt.timerC:
			utt.timerC = nil
			s.commitUtterance(utt)
		}
	}
}

func (s *LiveSession) shutdown(g *errgroup.Group, utt *utterance) error {
	s.interruptTurn()
	s.closeTranscription(utt)
	s.cancel()
	s.tasks.Wait()
	if err := g.Wait(); err != nil && !isClosedConnErr(err) {
		return err
	}
	return nil
}

func (s *LiveSession) handleFrame(frame inboundFrame, limiter *inboundAudioLimiter, utt *utterance) error {
	switch frame.messageType {
	case websocket.BinaryMessage:
		s.handleAudio(frame.data, limiter, utt)
		return nil
	case websocket.TextMessage:
	default:
		return nil
	}

	msg, err := protocol.DecodeClientMessage(frame.data)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			return s.rejectFrame(de.Code, de.Error())
		}
		return s.rejectFrame("bad_request", err.Error())
	}

	switch m := msg.(type) {
	case protocol.ClientText:
		text, err := limits.Text("text", m.Text, s.cfg.MaxTextBytes)
		if err != nil {
			return s.rejectFrame("bad_request", err.Error())
		}
		s.startTurn(turnInput{text: text})
	case protocol.ClientAudioChunk:
		if err := limits.Base64("data_b64", m.DataB64, int64(s.cfg.MaxAudioFrameBytes)); err != nil {
			return s.rejectFrame("audio_frame_too_large", err.Error())
		}
		pcm, err := m.Decode()
		if err != nil {
			return s.rejectFrame("bad_request", "audio_chunk.data_b64 is not valid base64")
		}
		s.handleAudio(pcm, limiter, utt)
	case protocol.ClientAudioEnd:
		s.handleAudioEnd(utt)
	case protocol.ClientAudioBlob:
		if err := limits.Base64("data_b64", m.DataB64, s.cfg.MaxAudioBytes); err != nil {
			return s.rejectFrame("audio_too_large", err.Error())
		}
		data, err := m.Decode()
		if err != nil {
			return s.rejectFrame("bad_request", "audio_blob.data_b64 is not valid base64")
		}
		if !s.caps.STT {
			return s.rejectFrame("stt_unavailable", "speech-to-text is not configured")
		}
		s.metrics.RecordLiveAudio("in", len(data))
		s.startTurn(turnInput{audio: data, format: m.Format})
	case protocol.ClientControl:
		return s.handleControl(m)
	case protocol.ClientSettings:
		if m.Speak != nil {
			s.speak.Store(*m.Speak && s.caps.TTS)
		}
		if m.VoiceID != "" {
			s.voiceMu.Lock()
			s.voiceID = m.VoiceID
			s.voiceMu.Unlock()
		}
		return s.reply(protocol.ServerAck{Type: "ack", Op: "settings"})
	}
	return nil
}

func (s *LiveSession) handleControl(m protocol.ClientControl) error {
	switch m.Op {
	case protocol.OpPing:
		return s.reply(protocol.ServerPong{Type: "pong"})
	case protocol.OpCancel:
		s.interruptTurn()
		if err := s.reply(protocol.ServerAck{Type: "ack", Op: m.Op}); err != nil {
			return err
		}
		return s.reply(protocol.ServerStatus{Type: "status", State: protocol.StateIdle})
	case protocol.OpClearHistory:
		if err := s.assistant.ClearHistory(s.ctx, s.sessionKey); err != nil {
			s.logger.Warn("clear history failed", "session_id", s.sessionID, "error", err)
			return s.rejectFrame("history_error", "failed to clear history")
		}
		return s.reply(protocol.ServerAck{Type: "ack", Op: m.Op})
	case protocol.OpSystemInfo:
		s.tasks.Add(1)
		go func() {
			defer s.tasks.Done()
			info := s.assistant.SystemInfo(s.ctx)
			if s.ctx.Err() != nil {
				return
			}
			_ = s.sendJSON(protocol.ServerSystemInfo{Type: "system_info", Info: info})
		}()
	}
	return nil
}

func (s *LiveSession) handleAudio(pcm []byte, limiter *inboundAudioLimiter, utt *utterance) {
	if len(pcm) == 0 {
		return
	}
	if s.cfg.MaxAudioFrameBytes > 0 && len(pcm) > s.cfg.MaxAudioFrameBytes {
		_ = s.sendError("audio_frame_too_large", fmt.Sprintf("audio frame exceeds %d bytes", s.cfg.MaxAudioFrameBytes))
		return
	}
	if !limiter.Allow(len(pcm)) {
		_ = s.sendWarning("audio_rate_limited", "inbound audio rate exceeded; frame dropped")
		return
	}
	s.metrics.RecordLiveAudio("in", len(pcm))
	_ = s.sendJSON(protocol.ServerAmplitude{Type: "amplitude", Value: audio.Amplitude(pcm)})

	if !s.ensureTranscription(utt) {
		return
	}
	if !utt.listening {
		utt.listening = true
		_ = s.sendStatus(protocol.StateListening)
	}
	if err := utt.stream.SendAudio(pcm); err != nil {
		s.logger.Warn("stt send failed", "session_id", s.sessionID, "error", err)
		_ = s.sendWarning("stt_error", "speech recognition interrupted")
		s.closeTranscription(utt)
	}
}

func (s *LiveSession) ensureTranscription(utt *utterance) bool {
	if utt.stream != nil {
		return true
	}
	if utt.unavailable {
		return false
	}
	stream, err := s.assistant.NewLiveTranscription(s.ctx)
	if err != nil {
		utt.unavailable = true
		s.logger.Warn("stt open failed", "session_id", s.sessionID, "error", err)
		_ = s.sendError("stt_unavailable", "speech recognition is unavailable")
		return false
	}
	utt.stream = stream
	utt.deltas = stream.Deltas()
	return true
}

func (s *LiveSession) closeTranscription(utt *utterance) {
	if utt == nil {
		return
	}
	if utt.stream != nil {
		_ = utt.stream.Close()
	}
	utt.stream = nil
	utt.deltas = nil
	utt.stopTimer()
}

func (s *LiveSession) handleDelta(utt *utterance, delta stt.TranscriptDelta) {
	text := strings.TrimSpace(delta.Text)
	if !delta.IsFinal {
		if text != "" {
			_ = s.sendJSON(protocol.ServerTranscript{Type: "transcript", Text: utt.join(text)})
		}
		return
	}
	if text != "" {
		utt.finalText = append(utt.finalText, text)
		_ = s.sendJSON(protocol.ServerTranscript{Type: "transcript", Text: utt.join("")})
	}
	if delta.SpeechFinal || utt.awaitingEnd {
		s.commitUtterance(utt)
	}
}

func (s *LiveSession) handleTranscriptionEnded(utt *utterance) {
	if utt.stream != nil {
		if err := utt.stream.Err(); err != nil {
			s.logger.Warn("stt stream ended", "session_id", s.sessionID, "error", err)
			_ = s.sendWarning("stt_error", "speech recognition interrupted")
		}
		_ = utt.stream.Close()
	}
	utt.stream = nil
	utt.deltas = nil
	if utt.awaitingEnd {
		s.commitUtterance(utt)
	}
}

func (s *LiveSession) handleAudioEnd(utt *utterance) {
	if utt.awaitingEnd {
		return
	}
	if utt.stream == nil {
		s.commitUtterance(utt)
		return
	}
	utt.awaitingEnd = true
	if err := utt.stream.Finalize(); err != nil {
		s.commitUtterance(utt)
		return
	}
	utt.timer = time.NewTimer(s.cfg.FinalizeWait)
	utt.timerC = utt.timer.C
}

// commitUtterance turns the accumulated final transcript into a turn.
func (s *LiveSession) commitUtterance(utt *utterance) {
	text := utt.join("")
	wasListening := utt.listening
	utt.finalText = nil
	utt.awaitingEnd = false
	utt.listening = false
	utt.stopTimer()

	if text == "" {
		if wasListening {
			_ = s.sendStatus(protocol.StateIdle)
		}
		return
	}
	_ = s.sendJSON(protocol.ServerTranscript{Type: "transcript", Text: text, IsFinal: true})
	s.startTurn(turnInput{text: text})
}

func (u *utterance) join(interim string) string {
	parts := u.finalText
	if interim != "" {
		parts = append(parts[:len(parts):len(parts)], interim)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (u *utterance) stopTimer() {
	if u.timer != nil {
		u.timer.Stop()
	}
	u.timer = nil
	u.timerC = nil
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) sendStatus(state string) error {
	return s.sendJSON(protocol.ServerStatus{Type: "status", State: state})
}

func (s *LiveSession) sendWarning(code, message string) error {
	return s.sendJSON(protocol.ServerWarning{Type: "warning", Code: code, Message: message})
}

func (s *LiveSession) sendError(code, message string) error {
	return s.sendJSON(protocol.ServerError{Type: "error", Code: code, Message: message})
}

// reply answers a client frame. A full outbound queue drops the reply and
// keeps the session open.
func (s *LiveSession) reply(v any) error {
	err := s.sendJSON(v)
	if errors.Is(err, errBackpressure) {
		s.logger.Debug("live reply dropped", "session_id", s.sessionID, "error", err)
		return nil
	}
	return err
}

func (s *LiveSession) rejectFrame(code, message string) error {
	return s.reply(protocol.ServerError{Type: "error", Code: code, Message: message})
}

// sendSessionError queues a fatal error and ends the session.
func (s *LiveSession) sendSessionError(code, message string, close bool) error {
	msg := protocol.ServerError{Type: "error", Code: code, Message: message, Close: close}
	if !close {
		return s.sendJSON(msg)
	}
	err := s.sendJSONPriority(msg)
	s.cancel()
	return err
}

func (s *LiveSession) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{payload: payload})
}

func (s *LiveSession) sendJSONPriority(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueuePriority(outboundFrame{payload: payload})
}

func (s *LiveSession) sendTurnJSON(turnID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{turnID: turnID, payload: payload})
}

func (s *LiveSession) enqueueNormal(frame outboundFrame) error {
	if frame.turnID != "" && s.isTurnCanceled(frame.turnID) {
		return nil
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) enqueuePriority(frame outboundFrame) error {
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

func (s *LiveSession) SendWarning(code, message string) error {
	if s == nil {
		return nil
	}
	return s.sendJSONPriority(protocol.ServerWarning{Type: "warning", Code: code, Message: message})
}

func (s *LiveSession) markTurnCanceled(turnID string) {
	if turnID == "" {
		return
	}
	state, ok := s.canceledTurns.Load().(canceledTurnState)
	if !ok {
		state = canceledTurnState{set: make(map[string]struct{})}
	}
	if _, exists := state.set[turnID]; exists {
		return
	}

	nextSet := make(map[string]struct{}, len(state.set)+1)
	for k := range state.set {
		nextSet[k] = struct{}{}
	}
	nextOrder := make([]string, 0, len(state.order)+1)
	nextOrder = append(nextOrder, state.order...)
	nextOrder = append(nextOrder, turnID)
	nextSet[turnID] = struct{}{}

	for len(nextOrder) > maxCanceledTurnIDs {
		delete(nextSet, nextOrder[0])
		nextOrder = nextOrder[1:]
	}
	s.canceledTurns.Store(canceledTurnState{set: nextSet, order: nextOrder})
}

func (s *LiveSession) isTurnCanceled(turnID string) bool {
	if turnID == "" {
		return false
	}
	state, ok := s.canceledTurns.Load().(canceledTurnState)
	if !ok || state.set == nil {
		return false
	}
	_, exists := state.set[turnID]
	return exists
}

func isClosedConnErr(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent) || strings.Contains(err.Error(), "use of closed network connection")
}
