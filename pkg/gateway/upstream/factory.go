package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/providers/gemini"
	"github.com/anay-go/anay/pkg/core/providers/groq"
	"github.com/anay-go/anay/pkg/core/providers/openai"
	"github.com/anay-go/anay/pkg/core/voice/stt"
	"github.com/anay-go/anay/pkg/core/voice/tts"
	"github.com/anay-go/anay/pkg/gateway/config"
)

// Factory builds the upstream providers the assistant talks to.
type Factory struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Spec names one LLM backend.
type Spec struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// LLMSpec returns the LLM backend selected by cfg. ok is false when no
// provider is configured.
func LLMSpec(cfg config.Config) (spec Spec, ok bool) {
	spec = Spec{Provider: cfg.LLMProvider, Model: cfg.LLMModel}
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		spec.APIKey = cfg.GeminiAPIKey
	case config.ProviderGroq:
		spec.APIKey = cfg.GroqAPIKey
		spec.BaseURL = cfg.GroqBaseURL
	case config.ProviderOpenAI:
		spec.APIKey = cfg.OpenAIAPIKey
		spec.BaseURL = cfg.OpenAIBaseURL
	default:
		return Spec{}, false
	}
	return spec, spec.APIKey != ""
}

func (f Factory) client() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return &http.Client{}
}

// New builds the LLM provider described by spec.
func (f Factory) New(ctx context.Context, spec Spec) (core.Provider, error) {
	client := f.client()

	switch spec.Provider {
	case config.ProviderGemini:
		opts := []gemini.Option{}
		if spec.Model != "" {
			opts = append(opts, gemini.WithModel(spec.Model))
		}
		if f.Logger != nil {
			opts = append(opts, gemini.WithLogger(f.Logger))
		}
		p, err := gemini.New(ctx, spec.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderGroq:
		opts := []groq.Option{groq.WithHTTPClient(client)}
		if spec.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(spec.BaseURL))
		}
		if spec.Model != "" {
			opts = append(opts, groq.WithModel(spec.Model))
		}
		return groq.New(spec.APIKey, opts...), nil
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithHTTPClient(client)}
		if spec.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(spec.BaseURL))
		}
		if spec.Model != "" {
			opts = append(opts, openai.WithDefaultModel(spec.Model))
		}
		return openai.New(spec.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", spec.Provider)
	}
}

// STT returns the Deepgram provider, or nil when no key is configured.
func (f Factory) STT(cfg config.Config) stt.Provider {
	if cfg.DeepgramAPIKey == "" {
		return nil
	}
	opts := []stt.DeepgramOption{stt.WithDeepgramHTTPClient(f.client())}
	if cfg.DeepgramURL != "" {
		opts = append(opts, stt.WithDeepgramBaseURL(cfg.DeepgramURL))
	}
	return stt.NewDeepgram(cfg.DeepgramAPIKey, opts...)
}

// TTS returns the ElevenLabs provider, or nil when no key is configured.
func (f Factory) TTS(cfg config.Config) tts.Provider {
	if cfg.ElevenLabsAPIKey == "" {
		return nil
	}
	opts := []tts.ElevenLabsOption{tts.WithElevenLabsHTTPClient(f.client())}
	if cfg.ElevenLabsBaseURL != "" {
		opts = append(opts, tts.WithElevenLabsBaseURL(cfg.ElevenLabsBaseURL))
	}
	if cfg.ElevenLabsVoiceID != "" {
		opts = append(opts, tts.WithDefaultVoice(cfg.ElevenLabsVoiceID))
	}
	return tts.NewElevenLabs(cfg.ElevenLabsAPIKey, opts...)
}
