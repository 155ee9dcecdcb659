package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anay-go/anay/pkg/assistant"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/voice/tts"
	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/limits"
	"github.com/anay-go/anay/pkg/gateway/live/session"
	"github.com/anay-go/anay/pkg/gateway/metrics"
)

// DefaultSessionKey is the conversation used when a request names none.
const DefaultSessionKey = "default"

// Assistant is what the HTTP and live handlers need from the turn pipeline.
type Assistant interface {
	session.Assistant
	ListVoices(ctx context.Context) ([]tts.Voice, error)
}

type chatRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	*assistant.Reply
	SessionID string `json:"session_id"`
}

// ChatHandler runs one text turn: POST /v1/chat.
type ChatHandler struct {
	Config    config.Config
	Assistant Assistant
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	reqID := requestIDFromContext(r.Context())

	var req chatRequest
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err, h.Metrics)
		return
	}
	text, err := limits.Text("text", req.Text, h.Config.MaxTextBytes)
	if err != nil {
		writeErr(w, reqID, err, h.Metrics)
		return
	}
	req.Text = text
	sessionKey := strings.TrimSpace(req.SessionID)
	if sessionKey == "" {
		sessionKey = DefaultSessionKey
	}

	ctx, cancel := handlerContext(r.Context(), h.Config)
	defer cancel()

	reply, err := h.Assistant.Respond(ctx, sessionKey, req.Text)
	if err != nil {
		writeErr(w, reqID, err, h.Metrics)
		return
	}
	h.Metrics.RecordTurn(string(reply.Source))
	if reply.Error != "" && h.Logger != nil {
		h.Logger.Warn("chat fell back", "request_id", reqID, "error", reply.Error)
	}

	w.Header().Set("X-Reply-Source", string(reply.Source))
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, SessionID: sessionKey})
}

// HistoryHandler forgets a conversation: DELETE /v1/history?session_id=.
type HistoryHandler struct {
	Assistant Assistant
	Metrics   *metrics.Metrics
}

func (h HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, r, http.MethodDelete)
		return
	}
	sessionKey := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionKey == "" {
		sessionKey = DefaultSessionKey
	}
	if err := h.Assistant.ClearHistory(r.Context(), sessionKey); err != nil {
		writeErr(w, requestIDFromContext(r.Context()), err, h.Metrics)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handlerContext(parent context.Context, cfg config.Config) (context.Context, context.CancelFunc) {
	if cfg.HandlerTimeout > 0 {
		return context.WithTimeout(parent, cfg.HandlerTimeout)
	}
	return context.WithCancel(parent)
}

// decodeJSONBody strictly decodes a single JSON object no larger than limit.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return core.NewInvalidRequestError("request body too large")
		}
		return core.NewInvalidRequestError("failed to read request body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.NewInvalidRequestError("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return core.NewInvalidRequestError("request body must contain a single JSON object")
	}
	return nil
}
