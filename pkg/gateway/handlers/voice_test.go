package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anay-go/anay/pkg/core/voice/tts"
	"github.com/anay-go/anay/pkg/gateway/config"
)

func TestTranscribeHandler(t *testing.T) {
	a := &fakeAssistant{transcript: "hello anay"}
	h := TranscribeHandler{Config: config.Config{MaxAudioBytes: 1 << 10, HandlerTimeout: time.Minute}, Assistant: a}

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?format=WAV", bytes.NewReader([]byte("RIFFdata")))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["text"] != "hello anay" {
		t.Fatalf("text=%v", resp["text"])
	}
	if a.gotFormat != "wav" || string(a.gotAudio) != "RIFFdata" {
		t.Fatalf("format=%q audio=%q", a.gotFormat, a.gotAudio)
	}
}

func TestTranscribeHandler_Limits(t *testing.T) {
	h := TranscribeHandler{Config: config.Config{MaxAudioBytes: 4}, Assistant: &fakeAssistant{}}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/transcribe", bytes.NewReader(make([]byte, 16))))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/transcribe", http.NoBody))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestAudioFormat(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		want        string
	}{
		{url: "/v1/transcribe?format=webm", want: "webm"},
		{url: "/v1/transcribe", contentType: "audio/mpeg", want: "mp3"},
		{url: "/v1/transcribe", contentType: "audio/x-wav", want: "wav"},
		{url: "/v1/transcribe", contentType: "audio/ogg; codecs=opus", want: "ogg"},
		{url: "/v1/transcribe", contentType: "application/octet-stream", want: ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.url, nil)
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		if got := audioFormat(req); got != tt.want {
			t.Fatalf("audioFormat(%s, %q)=%q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}

func TestSpeechHandler_StreamsAudio(t *testing.T) {
	a := &fakeAssistant{chunks: [][]byte{[]byte("ID3"), []byte("frame")}}
	h := SpeechHandler{Config: chatConfig(), Assistant: a}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/tts", strings.NewReader(`{"text":"hello","voice_id":"v1"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content-type=%q", ct)
	}
	if rr.Body.String() != "ID3frame" {
		t.Fatalf("body=%q", rr.Body.String())
	}
	if a.gotVoice != "v1" {
		t.Fatalf("voice=%q, want v1", a.gotVoice)
	}
}

func TestSpeechHandler_Errors(t *testing.T) {
	rr := httptest.NewRecorder()
	SpeechHandler{Config: chatConfig(), Assistant: &fakeAssistant{noTTS: true}}.
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/tts", strings.NewReader(`{"text":"hello"}`)))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("no tts: status=%d, want 503", rr.Code)
	}

	rr = httptest.NewRecorder()
	SpeechHandler{Config: chatConfig(), Assistant: &fakeAssistant{speakErr: &tts.Error{StatusCode: 429, Message: "slow down"}}}.
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/tts", strings.NewReader(`{"text":"hello"}`)))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("upstream 429: status=%d body=%q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	SpeechHandler{Config: chatConfig(), Assistant: &fakeAssistant{speakErr: errors.New("boom")}}.
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/tts", strings.NewReader(`{"text":"hello"}`)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unknown error: status=%d", rr.Code)
	}
}

func TestVoicesHandler(t *testing.T) {
	a := &fakeAssistant{voices: []tts.Voice{{VoiceID: "v1", Name: "Rachel"}}}
	rr := httptest.NewRecorder()
	VoicesHandler{Assistant: a}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/voices", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp struct {
		Voices []tts.Voice `json:"voices"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Voices) != 1 || resp.Voices[0].Name != "Rachel" {
		t.Fatalf("voices=%+v", resp.Voices)
	}

	rr = httptest.NewRecorder()
	VoicesHandler{Assistant: &fakeAssistant{}}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/voices", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured: status=%d, want 503", rr.Code)
	}
}

func TestSystemHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	SystemHandler{Assistant: &fakeAssistant{}}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/system", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["platform"] != "linux" || resp["cpu_count"] != float64(8) {
		t.Fatalf("resp=%v", resp)
	}
}
