package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anay-go/anay/pkg/gateway/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		AuthMode:                      config.AuthModeDisabled,
		APIKeys:                       map[string]struct{}{},
		CORSAllowedOrigins:            map[string]struct{}{},
		MaxBodyBytes:                  1 << 20,
		MaxAudioBytes:                 1 << 20,
		MaxTextBytes:                  4096,
		WSMaxSessionDuration:          time.Minute,
		WSMaxSessionsPerPrincipal:     1,
		ReadHeaderTimeout:             time.Second,
		ReadTimeout:                   time.Second,
		HandlerTimeout:                5 * time.Second,
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: time.Second,
		Workspace:                     dir,
		MemoryDBPath:                  filepath.Join(dir, "memory.db"),
		ContextFile:                   filepath.Join(dir, "execution_context.json"),
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rr := serve(s, http.MethodGet, "/does-not-exist", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"type":"not_found_error"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}

func TestServer_ProbesAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthMode = config.AuthModeRequired
	cfg.APIKeys = map[string]struct{}{"k1": {}}
	s := newTestServer(t, cfg)

	if rr := serve(s, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := serve(s, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%q", rr.Code, rr.Body.String())
	}

	// Generate one request so the counter has a sample.
	if rr := serve(s, http.MethodGet, "/v1/system", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status=%d, want 401", rr.Code)
	}

	rr := serve(s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "anay_requests_total") {
		t.Fatalf("metrics body missing request counter: %q", rr.Body.String())
	}
}

func TestServer_ChatWithoutLLMFallsBack(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rr := serve(s, http.MethodPost, "/v1/chat", `{"text":"how are you today"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp struct {
		Text      string `json:"text"`
		Source    string `json:"source"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Source != "fallback" {
		t.Fatalf("source=%q, want fallback", resp.Source)
	}
	if resp.Text == "" || resp.SessionID != "default" {
		t.Fatalf("resp=%+v", resp)
	}

	if rr := serve(s, http.MethodDelete, "/v1/history?session_id=default", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("history status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_VoiceRoutesWithoutProviders(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rr := serve(s, http.MethodPost, "/v1/tts", `{"text":"hello"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("tts status=%d body=%q", rr.Code, rr.Body.String())
	}
	rr = serve(s, http.MethodPost, "/v1/transcribe?format=wav", "RIFF")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("transcribe status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_UnsupportedAPIVersion(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/system", nil)
	req.Header.Set("X-ANAY-Version", "2")
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_DrainingFlipsReadiness(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	s.SetDraining()

	if rr := serve(s, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
	if rr := serve(s, http.MethodGet, "/v1/ws", ""); rr.Code == http.StatusNotFound {
		t.Fatal("/v1/ws unexpectedly returned 404")
	}
	if n := s.WarnLiveSessionsDraining(); n != 0 {
		t.Fatalf("warned=%d, want 0", n)
	}
}
