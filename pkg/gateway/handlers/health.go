package handlers

import (
	"net/http"

	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether the gateway should receive traffic. It turns
// not-ready as soon as a drain starts.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK            bool     `json:"ok"`
		Draining      bool     `json:"draining,omitempty"`
		AuthMode      string   `json:"auth_mode"`
		LLMProvider   string   `json:"llm_provider,omitempty"`
		STT           bool     `json:"stt"`
		TTS           bool     `json:"tts"`
		Memory        bool     `json:"memory"`
		LimitsEnabled bool     `json:"limits_enabled"`
		LiveSessions  int      `json:"live_sessions"`
		Issues        []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.MaxBodyBytes <= 0 {
		issues = append(issues, "max_body_bytes must be > 0")
	}
	if h.Config.MaxAudioBytes <= 0 {
		issues = append(issues, "max_audio_bytes must be > 0")
	}
	if h.Config.MaxTextBytes <= 0 {
		issues = append(issues, "max_text_bytes must be > 0")
	}
	if h.Config.WSMaxSessionDuration <= 0 {
		issues = append(issues, "ws max session duration must be > 0")
	}
	if h.Config.WSMaxSessionsPerPrincipal <= 0 {
		issues = append(issues, "ws max sessions per principal must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 || h.Config.HandlerTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}
	if h.Config.UpstreamConnectTimeout <= 0 || h.Config.UpstreamResponseHeaderTimeout <= 0 {
		issues = append(issues, "upstream timeouts must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	if draining {
		issues = append(issues, "draining")
	}

	limitsEnabled := (h.Config.LimitRPS > 0 && h.Config.LimitBurst > 0) ||
		(h.Config.LimitMaxConcurrentRequests > 0) ||
		(h.Config.WSMaxSessionsPerPrincipal > 0)

	ok := len(issues) == 0
	status := http.StatusOK
	switch {
	case draining:
		status = http.StatusServiceUnavailable
	case !ok:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, readyResp{
		OK:            ok,
		Draining:      draining,
		AuthMode:      string(h.Config.AuthMode),
		LLMProvider:   h.Config.LLMProvider,
		STT:           h.Config.DeepgramAPIKey != "",
		TTS:           h.Config.ElevenLabsAPIKey != "",
		Memory:        h.Config.MemoryDBPath != "",
		LimitsEnabled: limitsEnabled,
		LiveSessions:  h.Lifecycle.LiveSessions(),
		Issues:        issues,
	})
}
