package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/limits"
	"github.com/anay-go/anay/pkg/gateway/metrics"
)

// TranscribeHandler transcribes a raw audio body: POST /v1/transcribe?format=.
type TranscribeHandler struct {
	Config    config.Config
	Assistant Assistant
	Metrics   *metrics.Metrics
}

func (h TranscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	reqID := requestIDFromContext(r.Context())

	if h.Config.MaxAudioBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxAudioBytes)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeCoreErrorJSON(w, reqID, core.NewInvalidRequestError("audio exceeds max_audio_bytes"), http.StatusRequestEntityTooLarge)
			return
		}
		writeErr(w, reqID, core.NewInvalidRequestError("failed to read request body"), h.Metrics)
		return
	}
	if len(data) == 0 {
		writeErr(w, reqID, core.NewInvalidRequestError("audio body is empty"), h.Metrics)
		return
	}

	ctx, cancel := handlerContext(r.Context(), h.Config)
	defer cancel()

	transcript, err := h.Assistant.Transcribe(ctx, bytes.NewReader(data), audioFormat(r))
	if err != nil {
		writeErr(w, reqID, err, h.Metrics)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":       transcript.Text,
		"confidence": transcript.Confidence,
		"duration":   transcript.Duration,
	})
}

// audioFormat takes ?format= first and falls back to the Content-Type subtype.
func audioFormat(r *http.Request) string {
	if f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); f != "" {
		return f
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "audio/") {
		return ""
	}
	switch sub := strings.TrimPrefix(mediaType, "audio/"); sub {
	case "mpeg":
		return "mp3"
	case "x-wav", "wave":
		return "wav"
	case "l16":
		return "pcm"
	default:
		return sub
	}
}

type speechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// SpeechHandler streams synthesized MP3 audio: POST /v1/tts.
type SpeechHandler struct {
	Config    config.Config
	Assistant Assistant
	Metrics   *metrics.Metrics
}

func (h SpeechHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}
	reqID := requestIDFromContext(r.Context())

	var req speechRequest
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

	ctx, cancel := handlerContext(r.Context(), h.Config)
	defer cancel()

	stream, err := h.Assistant.Speak(ctx, req.Text, strings.TrimSpace(req.VoiceID))
	if err != nil {
		writeErr(w, reqID, err, h.Metrics)
		return
	}
	if stream == nil {
		writeErr(w, reqID, core.NewUnavailableError("tts"), h.Metrics)
		return
	}
	defer stream.Close()

	// Hold the status line until the first chunk so early failures still get
	// a JSON error.
	first, ok := <-stream.Chunks()
	if !ok {
		if err := stream.Err(); err != nil {
			writeErr(w, reqID, err, h.Metrics)
			return
		}
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	write := func(chunk []byte) bool {
		if len(chunk) == 0 {
			return true
		}
		if _, err := w.Write(chunk); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}
	if ok && !write(first) {
		return
	}
	for chunk := range stream.Chunks() {
		if !write(chunk) {
			return
		}
	}
}

// VoicesHandler lists the configured TTS voices: GET /v1/voices.
type VoicesHandler struct {
	Assistant Assistant
	Metrics   *metrics.Metrics
}

func (h VoicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	voices, err := h.Assistant.ListVoices(r.Context())
	if err != nil {
		writeErr(w, requestIDFromContext(r.Context()), err, h.Metrics)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// SystemHandler reports host resource usage: GET /v1/system.
type SystemHandler struct {
	Assistant Assistant
}

func (h SystemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.Assistant.SystemInfo(r.Context()))
}
