package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"

	// DefaultVoiceID is ElevenLabs' "Rachel" voice.
	DefaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID      = "eleven_multilingual_v2"
	elevenLabsChunkSize = 64 << 10
)

// VoiceSettings mirrors the ElevenLabs voice_settings object.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the settings ANAY speaks with.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0,
		UseSpeakerBoost: true,
	}
}

type ElevenLabsProvider struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	settings     VoiceSettings
	httpClient   *http.Client
}

// ElevenLabsOption configures the ElevenLabs provider.
type ElevenLabsOption func(*ElevenLabsProvider)

func WithElevenLabsBaseURL(base string) ElevenLabsOption {
	return func(e *ElevenLabsProvider) {
		if base = strings.TrimSpace(base); base != "" {
			e.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func WithElevenLabsHTTPClient(client *http.Client) ElevenLabsOption {
	return func(e *ElevenLabsProvider) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithDefaultVoice sets the voice used when a request names none.
func WithDefaultVoice(voiceID string) ElevenLabsOption {
	return func(e *ElevenLabsProvider) {
		if voiceID = strings.TrimSpace(voiceID); voiceID != "" {
			e.defaultVoice = voiceID
		}
	}
}

func WithVoiceSettings(settings VoiceSettings) ElevenLabsOption {
	return func(e *ElevenLabsProvider) { e.settings = settings }
}

func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) *ElevenLabsProvider {
	e := &ElevenLabsProvider{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      elevenLabsBaseURL,
		defaultVoice: DefaultVoiceID,
		settings:     DefaultVoiceSettings(),
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// DefaultVoice returns the configured fallback voice.
func (e *ElevenLabsProvider) DefaultVoice() string {
	return e.defaultVoice
}

func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	stream, err := e.SynthesizeStream(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	out, err := Collect(stream)
	if err != nil {
		return nil, err
	}
	return &Synthesis{Audio: out, Format: formatFamily(opts.Format)}, nil
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// SynthesizeStream posts to the streaming endpoint and relays the response
// body in 64 KiB chunks.
func (e *ElevenLabsProvider) SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if e.apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}

	voiceID := strings.TrimSpace(opts.Voice)
	if voiceID == "" {
		voiceID = e.defaultVoice
	}
	model := opts.Model
	if model == "" {
		model = DefaultModelID
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: model, VoiceSettings: e.settings})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream"
	if opts.Format != "" {
		endpoint += "?" + url.Values{"output_format": {opts.Format}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	e.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseElevenLabsError(resp)
	}

	stream := NewSynthesisStream()
	go func() {
		defer resp.Body.Close()
		defer stream.FinishSending()

		buf := make([]byte, elevenLabsChunkSize)
		for {
			n, err := io.ReadFull(resp.Body, buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !stream.Send(chunk) {
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				stream.SetError(fmt.Errorf("read audio: %w", err))
				return
			}
		}
	}()

	return stream, nil
}

// ListVoices returns the account's voices.
func (e *ElevenLabsProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	if e.apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, parseElevenLabsError(resp)
	}

	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return out.Voices, nil
}

func (e *ElevenLabsProvider) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", e.apiKey)
}

// Error is an ElevenLabs API failure.
type Error struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("elevenlabs error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("elevenlabs error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status of the failed call.
func (e *Error) HTTPStatus() int { return e.StatusCode }

func parseElevenLabsError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	out := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(parsed.Detail, &detail) == nil && detail.Message != "":
			out.Status = detail.Status
			out.Message = detail.Message
		case json.Unmarshal(parsed.Detail, &plain) == nil && plain != "":
			out.Message = plain
		}
	}
	if out.Message == "" {
		out.Message = http.StatusText(resp.StatusCode)
	}
	return out
}

func formatFamily(format string) string {
	switch {
	case format == "", strings.HasPrefix(format, "mp3"):
		return "mp3"
	case strings.HasPrefix(format, "pcm"):
		return "pcm"
	case strings.HasPrefix(format, "ulaw"):
		return "ulaw"
	default:
		return format
	}
}

// FormatFamily reports the container/codec for an ElevenLabs output format.
func FormatFamily(format string) string { return formatFamily(format) }
