package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

// LLM provider names accepted by ANAY_LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the gateway is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	MaxBodyBytes  int64
	MaxAudioBytes int64
	MaxTextBytes  int

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket mode (/v1/ws).
	WSMaxSessionDuration       time.Duration
	WSMaxSessionsPerPrincipal  int
	LiveMaxAudioFrameBytes     int
	LiveMaxMessageBytes        int64
	LiveMaxAudioFPS            int
	LiveMaxAudioBytesPerSecond int64
	LiveInboundBurstSeconds    int
	LiveWSPingInterval         time.Duration
	LiveWSWriteTimeout         time.Duration
	LiveWSReadTimeout          time.Duration
	LiveTurnTimeout            time.Duration

	// In-memory limits (per principal).
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentRequests int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration

	// Logging
	LogLevel  slog.Level
	LogFormat string

	// Assistant
	ProfileFile    string
	Workspace      string
	MemoryDBPath   string
	ContextFile    string
	LLMProvider    string
	LLMModel       string
	PlannerModel   string
	GeminiAPIKey   string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GroqAPIKey     string
	GroqBaseURL    string
	DeepgramAPIKey string
	DeepgramURL    string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsBaseURL string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("ANAY_ADDR", ":8080"),
		AuthMode:                      AuthMode(envOr("ANAY_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:                       make(map[string]struct{}),
		TrustProxyHeaders:             envBoolOr("ANAY_TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:                  envInt64Or("ANAY_MAX_BODY_BYTES", 1<<20),   // 1 MiB
		MaxAudioBytes:                 envInt64Or("ANAY_MAX_AUDIO_BYTES", 25<<20), // 25 MiB
		MaxTextBytes:                  envIntOr("ANAY_MAX_TEXT_BYTES", 16<<10),    // 16 KiB
		CORSAllowedOrigins:            make(map[string]struct{}),
		WSMaxSessionDuration:          envDurationOr("ANAY_WS_MAX_DURATION", 2*time.Hour),
		WSMaxSessionsPerPrincipal:     envIntOr("ANAY_WS_MAX_SESSIONS_PER_PRINCIPAL", 4),
		LiveMaxAudioFrameBytes:        envIntOr("ANAY_LIVE_MAX_AUDIO_FRAME_BYTES", 32<<10),
		LiveMaxMessageBytes:           envInt64Or("ANAY_LIVE_MAX_MESSAGE_BYTES", 8<<20),
		LiveMaxAudioFPS:               envIntOr("ANAY_LIVE_MAX_AUDIO_FPS", 120),
		LiveMaxAudioBytesPerSecond:    envInt64Or("ANAY_LIVE_MAX_AUDIO_BPS", 128*1024),
		LiveInboundBurstSeconds:       envIntOr("ANAY_LIVE_INBOUND_BURST_SECONDS", 2),
		LiveWSPingInterval:            envDurationOr("ANAY_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:            envDurationOr("ANAY_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSReadTimeout:             envDurationOr("ANAY_LIVE_WS_READ_TIMEOUT", 0),
		LiveTurnTimeout:               envDurationOr("ANAY_LIVE_TURN_TIMEOUT", 90*time.Second),
		LimitRPS:                      envFloat64Or("ANAY_RATE_LIMIT_RPS", 5.0),
		LimitBurst:                    envIntOr("ANAY_RATE_LIMIT_BURST", 10),
		LimitMaxConcurrentRequests:    envIntOr("ANAY_MAX_CONCURRENT_REQUESTS", 8),
		ReadHeaderTimeout:             envDurationOr("ANAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("ANAY_READ_TIMEOUT", 60*time.Second),
		HandlerTimeout:                envDurationOr("ANAY_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:           envDurationOr("ANAY_SHUTDOWN_GRACE_PERIOD", 15*time.Second),
		UpstreamConnectTimeout:        envDurationOr("ANAY_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("ANAY_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
		LogFormat:                     strings.ToLower(envOr("ANAY_LOG_FORMAT", "text")),
		ProfileFile:                   envOr("ANAY_PROFILE_FILE", ""),
		Workspace:                     envOr("ANAY_WORKSPACE", ""),
		MemoryDBPath:                  envOr("ANAY_MEMORY_DB", ""),
		ContextFile:                   envOr("ANAY_CONTEXT_FILE", "execution_context.json"),
		LLMProvider:                   strings.ToLower(envOr("ANAY_LLM_PROVIDER", "")),
		LLMModel:                      envOr("ANAY_LLM_MODEL", ""),
		PlannerModel:                  envOr("ANAY_PLANNER_MODEL", ""),
		GeminiAPIKey:                  envOr("GEMINI_API_KEY", ""),
		OpenAIAPIKey:                  envOr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:                 envOr("OPENAI_BASE_URL", ""),
		GroqAPIKey:                    envOr("GROQ_API_KEY", ""),
		GroqBaseURL:                   envOr("GROQ_BASE_URL", ""),
		DeepgramAPIKey:                envOr("DEEPGRAM_API_KEY", ""),
		DeepgramURL:                   envOr("DEEPGRAM_BASE_URL", ""),
		ElevenLabsAPIKey:              envOr("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:             envOr("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsBaseURL:             envOr("ELEVENLABS_BASE_URL", ""),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("ANAY_AUTH_MODE must be one of required|optional|disabled")
	}

	level, err := parseLevel(envOr("ANAY_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("ANAY_LOG_FORMAT must be one of text|json")
	}

	for _, key := range splitCSV(os.Getenv("ANAY_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("ANAY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.LLMProvider {
	case "":
		cfg.LLMProvider = cfg.defaultLLMProvider()
	case ProviderGemini, ProviderGroq, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("ANAY_LLM_PROVIDER must be one of gemini|groq|openai")
	}
	if cfg.LLMProvider != "" && cfg.providerKey(cfg.LLMProvider) == "" {
		return Config{}, fmt.Errorf("ANAY_LLM_PROVIDER=%s requires %s", cfg.LLMProvider, providerKeyEnv(cfg.LLMProvider))
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("ANAY_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxAudioBytes <= 0 {
		return Config{}, fmt.Errorf("ANAY_MAX_AUDIO_BYTES must be > 0")
	}
	if cfg.MaxTextBytes <= 0 {
		return Config{}, fmt.Errorf("ANAY_MAX_TEXT_BYTES must be > 0")
	}
	if cfg.WSMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("ANAY_WS_MAX_DURATION must be > 0")
	}
	if cfg.WSMaxSessionsPerPrincipal <= 0 {
		return Config{}, fmt.Errorf("ANAY_WS_MAX_SESSIONS_PER_PRINCIPAL must be > 0")
	}
	if cfg.LiveMaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.LiveMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveMaxAudioFPS < 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_MAX_AUDIO_FPS must be >= 0")
	}
	if cfg.LiveMaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_MAX_AUDIO_BPS must be >= 0")
	}
	if cfg.LiveInboundBurstSeconds < 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_INBOUND_BURST_SECONDS must be >= 0")
	}
	if (cfg.LiveMaxAudioFPS > 0 || cfg.LiveMaxAudioBytesPerSecond > 0) && cfg.LiveInboundBurstSeconds < 1 {
		return Config{}, fmt.Errorf("ANAY_LIVE_INBOUND_BURST_SECONDS must be >= 1 when inbound audio limits are enabled")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSReadTimeout < 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.LiveTurnTimeout < 0 {
		return Config{}, fmt.Errorf("ANAY_LIVE_TURN_TIMEOUT must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("ANAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("ANAY_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("ANAY_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("ANAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("ANAY_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("ANAY_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("ANAY_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("ANAY_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentRequests < 0 {
		return Config{}, fmt.Errorf("ANAY_MAX_CONCURRENT_REQUESTS must be >= 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("ANAY_API_KEYS must be set when ANAY_AUTH_MODE=required")
	}

	return cfg, nil
}

// defaultLLMProvider picks the first provider with a key, in the order
// gemini, groq, openai. It returns "" when none is configured.
func (c Config) defaultLLMProvider() string {
	for _, p := range []string{ProviderGemini, ProviderGroq, ProviderOpenAI} {
		if c.providerKey(p) != "" {
			return p
		}
	}
	return ""
}

func (c Config) providerKey(provider string) string {
	switch provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

func providerKeyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// NewLogger builds the process logger described by the config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("ANAY_LOG_LEVEL must be one of debug|info|warn|error")
	}
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
