package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anay-go/anay/pkg/core/audio"
)

const (
	deepgramBaseURL      = "https://api.deepgram.com"
	deepgramDefaultModel = "nova-2"
)

// DeepgramProvider implements Provider using Deepgram's listen API.
type DeepgramProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	keepAlive  time.Duration
}

// DeepgramOption configures the Deepgram provider.
type DeepgramOption func(*DeepgramProvider)

// WithDeepgramBaseURL points the provider at another host (used in tests).
func WithDeepgramBaseURL(base string) DeepgramOption {
	return func(d *DeepgramProvider) {
		if base = strings.TrimSpace(base); base != "" {
			d.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func WithDeepgramHTTPClient(client *http.Client) DeepgramOption {
	return func(d *DeepgramProvider) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithKeepAliveInterval sets how long a live stream may idle before a
// KeepAlive message is sent.
func WithKeepAliveInterval(d time.Duration) DeepgramOption {
	return func(p *DeepgramProvider) {
		if d > 0 {
			p.keepAlive = d
		}
	}
}

// NewDeepgram creates a new Deepgram STT provider.
func NewDeepgram(apiKey string, opts ...DeepgramOption) *DeepgramProvider {
	d := &DeepgramProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    deepgramBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		keepAlive:  8 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the provider identifier.
func (d *DeepgramProvider) Name() string {
	return "deepgram"
}

// Transcribe sends a recording to the prerecorded endpoint.
func (d *DeepgramProvider) Transcribe(ctx context.Context, r io.Reader, opts TranscribeOptions) (*Transcript, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return &Transcript{}, nil
	}

	format := normalizeFormat(opts.Format)
	if format == "pcm" {
		data = audio.EncodeWAV(data, sampleRateOr(opts.SampleRate), 1)
		format = "wav"
	}

	q := url.Values{}
	q.Set("model", modelOr(opts.Model))
	q.Set("smart_format", "true")
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	q.Set("language", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/listen?"+q.Encode(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType(format))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseDeepgramError(resp)
	}

	var out deepgramPrerecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return out.transcript(), nil
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

type deepgramPrerecordedResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []deepgramAlternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (r deepgramPrerecordedResponse) transcript() *Transcript {
	t := &Transcript{Duration: r.Metadata.Duration}
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return t
	}
	alt := r.Results.Channels[0].Alternatives[0]
	t.Text = strings.TrimSpace(alt.Transcript)
	t.Confidence = alt.Confidence
	return t
}

// Error is a Deepgram API failure.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("deepgram error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("deepgram error %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status of the failed call.
func (e *Error) HTTPStatus() int { return e.StatusCode }

func parseDeepgramError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	out := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var parsed struct {
		ErrCode string `json:"err_code"`
		ErrMsg  string `json:"err_msg"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.ErrMsg != "" {
		out.Code = parsed.ErrCode
		out.Message = parsed.ErrMsg
	}
	if out.Message == "" {
		out.Message = http.StatusText(resp.StatusCode)
	}
	return out
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "wav", "wave":
		return "wav"
	case "pcm", "pcm16", "linear16", "pcm_s16le":
		return "pcm"
	case "webm", "ogg", "mp3", "flac", "m4a", "mp4":
		return format
	default:
		return "wav"
	}
}

func contentType(format string) string {
	switch format {
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "m4a", "mp4":
		return "audio/mp4"
	default:
		return "audio/wav"
	}
}

func modelOr(model string) string {
	if strings.TrimSpace(model) == "" {
		return deepgramDefaultModel
	}
	return model
}

func sampleRateOr(rate int) int {
	if rate <= 0 {
		return 16000
	}
	return rate
}

func itoa(v int) string { return strconv.Itoa(v) }
