package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anay-go/anay/pkg/assistant"
	"github.com/anay-go/anay/pkg/assistant/intent"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/gateway/config"
)

func chatConfig() config.Config {
	return config.Config{MaxBodyBytes: 1 << 20, MaxTextBytes: 64, HandlerTimeout: time.Minute}
}

func TestChatHandler_Reply(t *testing.T) {
	a := &fakeAssistant{reply: &assistant.Reply{
		Text:    "Opening notepad.",
		Source:  assistant.SourceCommand,
		Command: &intent.Command{Type: intent.LaunchApp, Name: "notepad"},
	}}
	h := ChatHandler{Config: chatConfig(), Assistant: a}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"text":" open notepad ","session_id":"desk"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Reply-Source"); got != "command" {
		t.Fatalf("X-Reply-Source=%q, want command", got)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["text"] != "Opening notepad." || resp["source"] != "command" || resp["session_id"] != "desk" {
		t.Fatalf("resp=%v", resp)
	}
	if cmd, _ := resp["command"].(map[string]any); cmd["name"] != "notepad" {
		t.Fatalf("command=%v", resp["command"])
	}
	if a.gotKey != "desk" || a.gotText != "open notepad" {
		t.Fatalf("assistant got key=%q text=%q", a.gotKey, a.gotText)
	}
}

func TestChatHandler_DefaultSessionKey(t *testing.T) {
	a := &fakeAssistant{}
	h := ChatHandler{Config: chatConfig(), Assistant: a}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"text":"hi"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if a.gotKey != DefaultSessionKey {
		t.Fatalf("session key=%q, want %q", a.gotKey, DefaultSessionKey)
	}
}

func TestChatHandler_Validation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed},
		{name: "invalid json", method: http.MethodPost, body: `{"text":`, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, body: `{"text":"hi","model":"x"}`, status: http.StatusBadRequest},
		{name: "blank text", method: http.MethodPost, body: `{"text":"   "}`, status: http.StatusBadRequest},
		{name: "text too long", method: http.MethodPost, body: `{"text":"` + strings.Repeat("a", 65) + `"}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ChatHandler{Config: chatConfig(), Assistant: &fakeAssistant{}}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, "/v1/chat", strings.NewReader(tt.body)))
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d body=%q", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestChatHandler_AssistantErrorMapped(t *testing.T) {
	a := &fakeAssistant{respondErr: core.NewUnavailableError("llm")}
	h := ChatHandler{Config: chatConfig(), Assistant: a}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"text":"hi"}`)))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestHistoryHandler(t *testing.T) {
	a := &fakeAssistant{}
	h := HistoryHandler{Assistant: a}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/history?session_id=desk", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if len(a.cleared) != 1 || a.cleared[0] != "desk" {
		t.Fatalf("cleared=%v", a.cleared)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/history", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rr.Code)
	}
}
