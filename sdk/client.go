package anay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/anay-go/anay/pkg/assistant/intent"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/voice/tts"
)

// Client calls the server's HTTP endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// ChatReply is the outcome of one text turn.
type ChatReply struct {
	Text      string          `json:"text"`
	Source    string          `json:"source"`
	Command   *intent.Command `json:"command,omitempty"`
	Error     string          `json:"error,omitempty"`
	SessionID string          `json:"session_id"`
}

type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration"`
}

// Chat runs one turn in the conversation named sessionID. An empty
// sessionID uses the server's default conversation.
func (c *Client) Chat(ctx context.Context, text, sessionID string) (*ChatReply, error) {
	body, err := json.Marshal(map[string]string{"text": text, "session_id": sessionID})
	if err != nil {
		return nil, err
	}
	var reply ChatReply
	if err := c.doJSON(ctx, http.MethodPost, "/v1/chat", "application/json", bytes.NewReader(body), &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Transcribe sends a complete recording in format (wav, mp3, webm, pcm).
func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (*Transcription, error) {
	path := "/v1/transcribe?format=" + url.QueryEscape(format)
	var out Transcription
	if err := c.doJSON(ctx, http.MethodPost, path, "application/octet-stream", bytes.NewReader(audio), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Speak returns the MP3 stream for text. The caller closes it.
func (c *Client) Speak(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]string{"text": text, "voice_id": voiceID})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/tts", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) Voices(ctx context.Context) ([]tts.Voice, error) {
	var out struct {
		Voices []tts.Voice `json:"voices"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/voices", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Voices, nil
}

func (c *Client) System(ctx context.Context) (*sysmon.Info, error) {
	var out sysmon.Info
	if err := c.doJSON(ctx, http.MethodGet, "/v1/system", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/history?session_id="+url.QueryEscape(sessionID), "", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) doJSON(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends the request and turns non-2xx responses into *core.Error.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: target, Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeErrorResponse(resp)
}

func decodeErrorResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Error *core.Error `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		return env.Error
	}
	return &core.Error{
		Type:    core.ErrAPI,
		Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
	}
}
