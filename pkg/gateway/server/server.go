package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/anay-go/anay/pkg/assistant"
	"github.com/anay-go/anay/pkg/assistant/execctx"
	"github.com/anay-go/anay/pkg/assistant/memory"
	"github.com/anay-go/anay/pkg/assistant/planner"
	"github.com/anay-go/anay/pkg/assistant/profile"
	"github.com/anay-go/anay/pkg/assistant/router"
	"github.com/anay-go/anay/pkg/assistant/safety"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/assistant/tools"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/handlers"
	"github.com/anay-go/anay/pkg/gateway/lifecycle"
	"github.com/anay-go/anay/pkg/gateway/metrics"
	"github.com/anay-go/anay/pkg/gateway/mw"
	"github.com/anay-go/anay/pkg/gateway/ratelimit"
	"github.com/anay-go/anay/pkg/gateway/upstream"
)

const metricsNamespace = "anay"

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	assistant  handlers.Assistant
	store      memory.Store
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	lifecycle  *lifecycle.Lifecycle
}

// New wires the assistant and its upstream providers from cfg.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	s := newServer(cfg, logger)
	s.httpClient = httpClient

	a, err := s.buildAssistant(context.Background())
	if err != nil {
		if s.store != nil {
			_ = s.store.Close()
		}
		return nil, err
	}
	s.assistant = a

	s.routes()
	return s, nil
}

// NewWithAssistant builds a server around an already wired assistant.
func NewWithAssistant(cfg config.Config, logger *slog.Logger, a handlers.Assistant) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := newServer(cfg, logger)
	s.assistant = a
	s.routes()
	return s
}

func newServer(cfg config.Config, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                     cfg.LimitRPS,
			Burst:                   cfg.LimitBurst,
			MaxConcurrentRequests:   cfg.LimitMaxConcurrentRequests,
			MaxConcurrentWSSessions: cfg.WSMaxSessionsPerPrincipal,
		}),
		metrics:   metrics.New(metricsNamespace),
		lifecycle: lifecycle.New(),
	}
}

func (s *Server) buildAssistant(ctx context.Context) (*assistant.Assistant, error) {
	cfg := s.cfg
	factory := upstream.Factory{HTTPClient: s.httpClient, Logger: s.logger}

	prof, err := profile.Load(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = prof.Workspace
	}

	var llm core.Provider
	if spec, ok := upstream.LLMSpec(cfg); ok {
		llm, err = factory.New(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("build %s provider: %w", spec.Provider, err)
		}
	} else {
		s.logger.Warn("no LLM provider configured; only local commands will work")
	}

	var store memory.Store = memory.NopStore{}
	if cfg.MemoryDBPath != "" {
		sqlite, err := memory.OpenSQLite(cfg.MemoryDBPath)
		if err != nil {
			return nil, err
		}
		store = sqlite
	}
	s.store = store

	execCtx, err := execctx.Open(cfg.ContextFile)
	if err != nil {
		return nil, err
	}

	files, err := tools.NewFileManager(workspace, execCtx, tools.WithFileLogger(s.logger))
	if err != nil {
		return nil, err
	}
	system := tools.NewSystemControl(prof.Apps, execCtx, tools.WithSystemLogger(s.logger))
	registry := tools.NewRegistry(
		system,
		files,
		tools.NewBrowser(tools.ExecRunner{}),
		tools.NewInputController(nil),
	)

	plannerModel := cfg.PlannerModel
	if plannerModel == "" {
		plannerModel = cfg.LLMModel
	}
	p := planner.New(planner.Config{
		LLM:       llm,
		Model:     plannerModel,
		Tools:     registry,
		Guard:     safety.New(prof.Safety),
		Context:   execCtx,
		Apps:      system,
		Workspace: files.Root(),
		Logger:    s.logger,
	})

	sttProvider := factory.STT(cfg)
	ttsProvider := factory.TTS(cfg)

	s.logger.Info("assistant configured",
		"llm_provider", cfg.LLMProvider,
		"stt", sttProvider != nil,
		"tts", ttsProvider != nil,
		"memory_db", cfg.MemoryDBPath,
		"workspace", files.Root(),
	)

	return assistant.New(assistant.Config{
		LLM:     llm,
		Model:   cfg.LLMModel,
		Profile: prof,
		Memory:  memory.NewManager(store, prof.MemoryPairs, s.logger),
		Router:  router.New(p, s.logger),
		STT:     sttProvider,
		TTS:     ttsProvider,
		Monitor: sysmon.New(s.logger),
		Logger:  s.logger,
	}), nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/v1/chat", handlers.ChatHandler{
		Config:    s.cfg,
		Assistant: s.assistant,
		Metrics:   s.metrics,
		Logger:    s.logger,
	})
	s.mux.Handle("/v1/history", handlers.HistoryHandler{Assistant: s.assistant, Metrics: s.metrics})
	s.mux.Handle("/v1/transcribe", handlers.TranscribeHandler{Config: s.cfg, Assistant: s.assistant, Metrics: s.metrics})
	s.mux.Handle("/v1/tts", handlers.SpeechHandler{Config: s.cfg, Assistant: s.assistant, Metrics: s.metrics})
	s.mux.Handle("/v1/voices", handlers.VoicesHandler{Assistant: s.assistant, Metrics: s.metrics})
	s.mux.Handle("/v1/system", handlers.SystemHandler{Assistant: s.assistant})
	s.mux.Handle("/v1/ws", handlers.LiveHandler{
		Config:    s.cfg,
		Assistant: s.assistant,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Limiter:   s.limiter,
		Lifecycle: s.lifecycle,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.cfg, s.limiter, s.metrics, h)
	h = mw.APIVersion(h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, s.metrics, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness to not-ready and rejects new live sessions.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WarnLiveSessionsDraining tells every live client the server is going away.
func (s *Server) WarnLiveSessionsDraining() int {
	return s.lifecycle.WarnAll("server_draining", "server is shutting down")
}

// WaitLiveSessions blocks until every live session ends or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.lifecycle.Wait(ctx)
}

func (s *Server) CancelLiveSessions() int {
	return s.lifecycle.CancelAll()
}

// Close releases the conversation store.
func (s *Server) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
