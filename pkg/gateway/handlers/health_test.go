package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/lifecycle"
)

func readyConfig(mode config.AuthMode) config.Config {
	return config.Config{
		AuthMode:                      mode,
		APIKeys:                       map[string]struct{}{},
		MaxBodyBytes:                  1,
		MaxAudioBytes:                 1,
		MaxTextBytes:                  1,
		WSMaxSessionDuration:          time.Minute,
		WSMaxSessionsPerPrincipal:     1,
		ReadHeaderTimeout:             time.Second,
		ReadTimeout:                   time.Second,
		HandlerTimeout:                time.Second,
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: time.Second,
	}
}

func serveReady(t *testing.T, h ReadyHandler) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return rr.Code, resp
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler_RequiredAuthEmptyKeys_NotReady(t *testing.T) {
	code, resp := serveReady(t, ReadyHandler{Config: readyConfig(config.AuthModeRequired)})
	if code != http.StatusInternalServerError {
		t.Fatalf("status=%d resp=%v", code, resp)
	}
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatalf("expected ok=false, got ok=true")
	}
}

func TestReadyHandler_OptionalAuth_Ready(t *testing.T) {
	code, resp := serveReady(t, ReadyHandler{Config: readyConfig(config.AuthModeOptional)})
	if code != http.StatusOK {
		t.Fatalf("status=%d resp=%v", code, resp)
	}
	if resp["limits_enabled"] != true {
		t.Fatalf("limits_enabled=%v, want true", resp["limits_enabled"])
	}
}

func TestReadyHandler_DrainingIs503(t *testing.T) {
	lc := lifecycle.New()
	lc.SetDraining(true)

	code, resp := serveReady(t, ReadyHandler{Config: readyConfig(config.AuthModeDisabled), Lifecycle: lc})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", code)
	}
	if resp["draining"] != true {
		t.Fatalf("draining=%v, want true", resp["draining"])
	}
}

func TestNotFoundHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	var env struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error.Type != "not_found_error" {
		t.Fatalf("type=%q", env.Error.Type)
	}
}
