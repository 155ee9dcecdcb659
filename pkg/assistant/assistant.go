// Package assistant runs a single conversational turn: desktop tasks go to
// the planner, everything else to the language model, with canned replies
// when the model is unreachable.
package assistant

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/anay-go/anay/pkg/assistant/intent"
	"github.com/anay-go/anay/pkg/assistant/memory"
	"github.com/anay-go/anay/pkg/assistant/profile"
	"github.com/anay-go/anay/pkg/assistant/router"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/types"
	"github.com/anay-go/anay/pkg/core/voice/stt"
	"github.com/anay-go/anay/pkg/core/voice/tts"
)

const (
	historyMessages = 10
	chatTemperature = 0.7
	chatMaxTokens   = 1024
	emptyReply      = "Sorry, I didn't receive a response from the API."
)

// Source says which path produced a reply.
type Source string

const (
	SourceCommand  Source = "command"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Reply is the outcome of a turn.
type Reply struct {
	Text    string          `json:"text"`
	Command *intent.Command `json:"command,omitempty"`
	Source  Source          `json:"source"`
	Error   string          `json:"error,omitempty"`
}

// Capabilities reports which backing services are configured.
type Capabilities struct {
	LLM bool `json:"llm"`
	STT bool `json:"stt"`
	TTS bool `json:"tts"`
}

// Config wires an Assistant. Every service is optional.
type Config struct {
	LLM     core.Provider
	Model   string
	Profile profile.Profile
	Memory  *memory.Manager
	Router  *router.Router
	STT     stt.Provider
	TTS     tts.Provider
	Monitor *sysmon.Monitor
	Logger  *slog.Logger
}

type Assistant struct {
	llm     core.Provider
	model   string
	persona string
	memory  *memory.Manager
	router  *router.Router
	stt     stt.Provider
	tts     tts.Provider
	monitor *sysmon.Monitor
	logger  *slog.Logger
}

func New(cfg Config) *Assistant {
	a := &Assistant{
		llm:     cfg.LLM,
		model:   cfg.Model,
		persona: cfg.Profile.Persona,
		memory:  cfg.Memory,
		router:  cfg.Router,
		stt:     cfg.STT,
		tts:     cfg.TTS,
		monitor: cfg.Monitor,
		logger:  cfg.Logger,
	}
	if a.persona == "" {
		a.persona = profile.DefaultPersona
	}
	if a.memory == nil {
		a.memory = memory.NewManager(nil, cfg.Profile.MemoryPairs, cfg.Logger)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.monitor == nil {
		a.monitor = sysmon.New(a.logger)
	}
	return a
}

func (a *Assistant) Capabilities() Capabilities {
	return Capabilities{LLM: a.llm != nil, STT: a.stt != nil, TTS: a.tts != nil}
}

// Respond handles one user utterance for sessionKey. The returned error is
// non-nil only for blank input or when ctx ends; model failures produce a
// fallback Reply with Error set.
func (a *Assistant) Respond(ctx context.Context, sessionKey, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.NewInvalidRequestErrorWithParam("text is required", "text")
	}

	if handled, reply := a.router.Route(ctx, text); handled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.remember(ctx, sessionKey, text, reply)
		return &Reply{Text: reply, Source: SourceCommand}, nil
	}

	if a.llm == nil {
		cmd := intent.Extract(text, "")
		return &Reply{
			Text:    intent.Fallback(cmd, false),
			Command: cmd,
			Source:  SourceFallback,
			Error:   core.NewUnavailableError("llm").Error(),
		}, nil
	}

	history := a.memory.Get(ctx, sessionKey).Last(historyMessages)
	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.UserMessage(text))

	resp, err := a.llm.Generate(ctx, &types.ChatRequest{
		Model:       a.model,
		System:      a.persona,
		Messages:    messages,
		Temperature: types.Float64(chatTemperature),
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.Error("language model failed", "provider", a.llm.Name(), "error", err)
		cmd := intent.Extract(text, "")
		return &Reply{
			Text:    intent.Fallback(cmd, core.HTTPStatus(err) != 0),
			Command: cmd,
			Source:  SourceFallback,
			Error:   err.Error(),
		}, nil
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		answer = emptyReply
	}
	a.remember(ctx, sessionKey, text, answer)
	return &Reply{Text: answer, Command: intent.Extract(text, answer), Source: SourceLLM}, nil
}

func (a *Assistant) remember(ctx context.Context, sessionKey, user, assistant string) {
	a.memory.Append(ctx, sessionKey, types.UserMessage(user))
	a.memory.Append(ctx, sessionKey, types.AssistantMessage(assistant))
}

// Speak streams synthesized audio for text. It returns nil, nil when no TTS
// provider is configured.
func (a *Assistant) Speak(ctx context.Context, text, voiceID string) (*tts.SynthesisStream, error) {
	if a.tts == nil {
		return nil, nil
	}
	return a.tts.SynthesizeStream(ctx, text, tts.SynthesizeOptions{Voice: voiceID})
}

// Transcribe converts a complete recording to text. format is a container
// hint such as wav, webm or pcm.
func (a *Assistant) Transcribe(ctx context.Context, audio io.Reader, format string) (*stt.Transcript, error) {
	if a.stt == nil {
		return nil, core.NewUnavailableError("stt")
	}
	return a.stt.Transcribe(ctx, audio, stt.TranscribeOptions{Format: format})
}

// NewLiveTranscription opens a streaming transcription session.
func (a *Assistant) NewLiveTranscription(ctx context.Context) (stt.LiveStream, error) {
	if a.stt == nil {
		return nil, core.NewUnavailableError("stt")
	}
	return a.stt.NewLiveStream(ctx, stt.TranscribeOptions{})
}

func (a *Assistant) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	if a.tts == nil {
		return nil, core.NewUnavailableError("tts")
	}
	return a.tts.ListVoices(ctx)
}

// ClearHistory forgets the conversation for sessionKey.
func (a *Assistant) ClearHistory(ctx context.Context, sessionKey string) error {
	return a.memory.Clear(ctx, sessionKey)
}

func (a *Assistant) SystemInfo(ctx context.Context) sysmon.Info {
	return a.monitor.Snapshot(ctx)
}
