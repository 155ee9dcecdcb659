package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/lifecycle"
	"github.com/anay-go/anay/pkg/gateway/live/protocol"
	"github.com/anay-go/anay/pkg/gateway/live/session"
	"github.com/anay-go/anay/pkg/gateway/metrics"
	"github.com/anay-go/anay/pkg/gateway/mw"
	"github.com/anay-go/anay/pkg/gateway/ratelimit"
)

// LiveHandler handles /v1/ws websocket sessions.
type LiveHandler struct {
	Config    config.Config
	Assistant Assistant
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
	Lifecycle *lifecycle.Lifecycle
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromContext(r.Context())
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining"}, 529)
		return
	}
	checkOrigin := mw.CheckWebSocketOrigin(h.Config)
	if !checkOrigin(r) {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}

	// The session cap is enforced before the upgrade so that clients get a
	// plain 429 they can back off on.
	if h.Limiter != nil && h.Config.WSMaxSessionsPerPrincipal > 0 {
		key := ratelimit.RequestKey(r, h.Config.TrustProxyHeaders)
		dec := h.Limiter.AcquireWSSession(key, time.Now())
		if !dec.Allowed {
			h.Metrics.RecordRateLimitHit("ws_session")
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", itoa(dec.RetryAfter))
			}
			writeCoreErrorJSON(w, reqID, core.NewRateLimitError("too many active live sessions", dec.RetryAfter), http.StatusTooManyRequests)
			return
		}
		defer dec.Permit.Release()
	}

	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := "s_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	sessionKey := strings.TrimSpace(r.URL.Query().Get("session_key"))

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", sessionID, "request_id", reqID)

	s, err := session.New(session.Dependencies{
		Conn:       conn,
		Assistant:  h.Assistant,
		Logger:     logger,
		Metrics:    h.Metrics,
		SessionID:  sessionID,
		SessionKey: sessionKey,
		RequestID:  reqID,
		Config: session.Config{
			MaxAudioFrameBytes:         h.Config.LiveMaxAudioFrameBytes,
			MaxAudioBytes:              h.Config.MaxAudioBytes,
			MaxTextBytes:               h.Config.MaxTextBytes,
			MaxMessageBytes:            h.Config.LiveMaxMessageBytes,
			LiveMaxAudioFPS:            h.Config.LiveMaxAudioFPS,
			LiveMaxAudioBytesPerSecond: h.Config.LiveMaxAudioBytesPerSecond,
			LiveInboundBurstSeconds:    h.Config.LiveInboundBurstSeconds,
			PingInterval:               h.Config.LiveWSPingInterval,
			WriteTimeout:               h.Config.LiveWSWriteTimeout,
			ReadTimeout:                h.Config.LiveWSReadTimeout,
			MaxSessionDuration:         h.Config.WSMaxSessionDuration,
			TurnTimeout:                h.Config.LiveTurnTimeout,
			DefaultVoiceID:             h.Config.ElevenLabsVoiceID,
		},
	})
	if err != nil {
		h.writeWSError(conn, "internal", "failed to initialize live session")
		return
	}

	unregister := h.Lifecycle.Register(sessionID, lifecycle.Handle{
		Cancel: s.Cancel,
		Warn:   s.SendWarning,
	})
	defer unregister()

	start := time.Now()
	h.Metrics.RecordLiveSessionStart()
	status := "ok"
	if err := s.Run(); err != nil {
		status = "error"
		logger.Warn("live session ended with error", "error", err)
	}
	h.Metrics.RecordLiveSessionEnd(status, time.Since(start))
	logger.Info("live session closed", "duration_ms", time.Since(start).Milliseconds())
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, code, message string) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Close: true})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, message), time.Now().Add(2*time.Second))
}
