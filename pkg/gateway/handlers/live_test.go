package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anay-go/anay/pkg/gateway/config"
	"github.com/anay-go/anay/pkg/gateway/lifecycle"
	"github.com/anay-go/anay/pkg/gateway/ratelimit"
)

func liveConfig() config.Config {
	return config.Config{
		WSMaxSessionDuration:      time.Minute,
		WSMaxSessionsPerPrincipal: 1,
		LiveWSPingInterval:        time.Second,
		LiveWSWriteTimeout:        time.Second,
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

func TestLiveHandler_DrainingRejects(t *testing.T) {
	lc := lifecycle.New()
	lc.SetDraining(true)
	h := LiveHandler{Config: liveConfig(), Assistant: &fakeAssistant{}, Lifecycle: lc}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ws", nil))
	if rr.Code != 529 {
		t.Fatalf("status=%d, want 529", rr.Code)
	}
}

func TestLiveHandler_RejectsDisallowedOrigin(t *testing.T) {
	h := LiveHandler{Config: liveConfig(), Assistant: &fakeAssistant{}}

	req := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rr.Code)
	}
}

func TestLiveHandler_SessionLifecycle(t *testing.T) {
	lc := lifecycle.New()
	limiter := ratelimit.New(ratelimit.Config{MaxConcurrentWSSessions: 1})
	h := LiveHandler{Config: liveConfig(), Assistant: &fakeAssistant{}, Lifecycle: lc, Limiter: limiter}

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ready map[string]any
	if err := json.Unmarshal(data, &ready); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ready["type"] != "ready" {
		t.Fatalf("first frame=%v, want ready", ready)
	}
	if id, _ := ready["session_id"].(string); !strings.HasPrefix(id, "s_") {
		t.Fatalf("session_id=%v", ready["session_id"])
	}
	if got := lc.LiveSessions(); got != 1 {
		t.Fatalf("live sessions=%d, want 1", got)
	}

	// A second session from the same principal is refused before upgrade.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		t.Fatalf("expected second dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second dial resp=%v, want 429", resp)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	if n := lc.CancelAll(); n != 1 {
		t.Fatalf("CancelAll=%d, want 1", n)
	}
	deadline := time.Now().Add(3 * time.Second)
	for lc.LiveSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not unregistered after cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
