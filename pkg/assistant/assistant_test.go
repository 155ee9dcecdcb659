package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anay-go/anay/pkg/assistant/intent"
	"github.com/anay-go/anay/pkg/assistant/memory"
	"github.com/anay-go/anay/pkg/assistant/planner"
	"github.com/anay-go/anay/pkg/assistant/profile"
	"github.com/anay-go/anay/pkg/assistant/router"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/types"
	"github.com/anay-go/anay/pkg/core/voice/stt"
	"github.com/anay-go/anay/pkg/core/voice/tts"
)

type fakeLLM struct {
	text string
	err  error
	reqs []*types.ChatRequest
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(_ context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &types.ChatResponse{Text: f.text}, nil
}

type fakeExecutor struct {
	result planner.Result
}

func (f fakeExecutor) IsSimple(string) bool { return true }
func (f fakeExecutor) ExecuteSimple(context.Context, string) (planner.Result, error) {
	return f.result, nil
}
func (f fakeExecutor) Execute(context.Context, string) (planner.Result, error) {
	return f.result, nil
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "upstream failed" }
func (e statusErr) HTTPStatus() int { return e.code }

type fakeSTT struct {
	got stt.TranscribeOptions
}

func (f *fakeSTT) Name() string { return "fake" }

func (f *fakeSTT) Transcribe(_ context.Context, r io.Reader, opts stt.TranscribeOptions) (*stt.Transcript, error) {
	f.got = opts
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &stt.Transcript{Text: strings.ToUpper(string(data))}, nil
}

func (f *fakeSTT) NewLiveStream(context.Context, stt.TranscribeOptions) (stt.LiveStream, error) {
	return nil, errors.New("not implemented")
}

type fakeTTS struct{}

func (fakeTTS) Name() string { return "fake" }
func (fakeTTS) Synthesize(context.Context, string, tts.SynthesizeOptions) (*tts.Synthesis, error) {
	return &tts.Synthesis{Audio: []byte("mp3"), Format: "mp3"}, nil
}
func (fakeTTS) SynthesizeStream(_ context.Context, text string, _ tts.SynthesizeOptions) (*tts.SynthesisStream, error) {
	s := tts.NewSynthesisStream()
	go func() {
		defer s.FinishSending()
		s.Send([]byte(text))
	}()
	return s, nil
}
func (fakeTTS) ListVoices(context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{VoiceID: "v1", Name: "Rachel"}}, nil
}

type zeroSource struct{}

func (zeroSource) CPUPercent(context.Context) (float64, error)             { return 1, nil }
func (zeroSource) CPUCount(context.Context) (int, error)                   { return 2, nil }
func (zeroSource) Memory(context.Context) (sysmon.MemoryStats, error)      { return sysmon.MemoryStats{}, nil }
func (zeroSource) Processes(context.Context) ([]sysmon.ProcessStat, error) { return nil, nil }

func newAssistant(llm core.Provider, exec router.Executor) *Assistant {
	cfg := Config{
		Profile: profile.Default(),
		Memory:  memory.NewManager(nil, 10, nil),
		Monitor: sysmon.NewWithSource(zeroSource{}, "Linux", nil),
	}
	if llm != nil {
		cfg.LLM = llm
	}
	if exec != nil {
		cfg.Router = router.New(exec, nil)
	}
	return New(cfg)
}

func TestRespondBlank(t *testing.T) {
	a := newAssistant(&fakeLLM{text: "hi"}, nil)
	_, err := a.Respond(context.Background(), "s", "   ")
	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	require.Equal(t, core.ErrInvalidRequest, ce.Type)
}

func TestRespondLLM(t *testing.T) {
	llm := &fakeLLM{text: "  Hello there!  "}
	a := newAssistant(llm, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := a.Respond(ctx, "s1", "message")
		require.NoError(t, err)
	}
	reply, err := a.Respond(ctx, "s1", "what's up")
	require.NoError(t, err)
	require.Equal(t, "Hello there!", reply.Text)
	require.Equal(t, SourceLLM, reply.Source)
	require.Nil(t, reply.Command)

	last := llm.reqs[len(llm.reqs)-1]
	require.Equal(t, profile.DefaultPersona, last.System)
	require.InDelta(t, 0.7, *last.Temperature, 1e-9)
	require.Equal(t, 1024, last.MaxTokens)
	// Ten history messages plus the new turn.
	require.Len(t, last.Messages, 11)
	require.Equal(t, "what's up", last.Messages[10].Content)
	require.Equal(t, types.RoleUser, last.Messages[0].Role)

	require.Equal(t, 16, a.memory.Get(ctx, "s1").Len())
	require.Zero(t, a.memory.Get(ctx, "s2").Len())
}

func TestRespondExtractsCommand(t *testing.T) {
	a := newAssistant(&fakeLLM{text: "Opening it now."}, nil)
	reply, err := a.Respond(context.Background(), "s", "open youtube")
	require.NoError(t, err)
	require.NotNil(t, reply.Command)
	require.Equal(t, intent.OpenBrowser, reply.Command.Type)
}

func TestRespondFallback(t *testing.T) {
	tests := []struct {
		name     string
		llm      core.Provider
		text     string
		want     string
		wantType intent.Type
	}{
		{"network error", &fakeLLM{err: errors.New("dial tcp: refused")}, "tell me a story",
			"Sorry, I'm having trouble responding right now. However, I can still execute system commands for you.", ""},
		{"upstream error", &fakeLLM{err: statusErr{code: 429}}, "tell me a story",
			"Sorry, I'm having trouble connecting to the API right now. However, I can still execute system commands for you.", ""},
		{"with command", &fakeLLM{err: statusErr{code: 500}}, "play despacito on spotify", "✅ Opening Spotify - despacito", intent.PlaySpotify},
		{"no llm", nil, "tell me a story",
			"Sorry, I'm having trouble responding right now. However, I can still execute system commands for you.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssistant(tt.llm, nil)
			reply, err := a.Respond(context.Background(), "s", tt.text)
			require.NoError(t, err)
			require.Equal(t, SourceFallback, reply.Source)
			require.Equal(t, tt.want, reply.Text)
			require.NotEmpty(t, reply.Error)
			if tt.wantType != "" {
				require.Equal(t, tt.wantType, reply.Command.Type)
			}
			require.Zero(t, a.memory.Get(context.Background(), "s").Len())
		})
	}
}

func TestRespondCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newAssistant(&fakeLLM{err: context.Canceled}, nil)
	_, err := a.Respond(ctx, "s", "tell me a story")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRespondRoutesCommands(t *testing.T) {
	llm := &fakeLLM{text: "unused"}
	a := newAssistant(llm, fakeExecutor{result: planner.Result{Text: "Launched chrome"}})

	reply, err := a.Respond(context.Background(), "s", "open chrome")
	require.NoError(t, err)
	require.Equal(t, &Reply{Text: "Launched chrome", Source: SourceCommand}, reply)
	require.Empty(t, llm.reqs)
	require.Equal(t, 2, a.memory.Get(context.Background(), "s").Len())

	// Planner found nothing to do: falls through to the model.
	a = newAssistant(llm, fakeExecutor{result: planner.Result{Text: planner.NoActionRequired}})
	reply, err = a.Respond(context.Background(), "s", "search your feelings")
	require.NoError(t, err)
	require.Equal(t, SourceLLM, reply.Source)
	require.Len(t, llm.reqs, 1)
}

func TestClearHistory(t *testing.T) {
	a := newAssistant(&fakeLLM{text: "ok"}, nil)
	ctx := context.Background()
	_, err := a.Respond(ctx, "s", "hello")
	require.NoError(t, err)
	require.NoError(t, a.ClearHistory(ctx, "s"))
	require.Zero(t, a.memory.Get(ctx, "s").Len())
}

func TestVoiceServices(t *testing.T) {
	ctx := context.Background()
	a := newAssistant(nil, nil)

	require.Equal(t, Capabilities{}, a.Capabilities())
	stream, err := a.Speak(ctx, "hello", "")
	require.NoError(t, err)
	require.Nil(t, stream)
	_, err = a.Transcribe(ctx, strings.NewReader("x"), "wav")
	require.ErrorContains(t, err, "stt is not configured")
	_, err = a.ListVoices(ctx)
	require.ErrorContains(t, err, "tts is not configured")

	s := &fakeSTT{}
	a = New(Config{STT: s, TTS: fakeTTS{}, Monitor: sysmon.NewWithSource(zeroSource{}, "Linux", nil)})
	require.Equal(t, Capabilities{STT: true, TTS: true}, a.Capabilities())

	tr, err := a.Transcribe(ctx, strings.NewReader("hi"), "webm")
	require.NoError(t, err)
	require.Equal(t, "HI", tr.Text)
	require.Equal(t, "webm", s.got.Format)

	stream, err = a.Speak(ctx, "hello", "v1")
	require.NoError(t, err)
	audio, err := tts.Collect(stream)
	require.NoError(t, err)
	require.Equal(t, "hello", string(audio))

	voices, err := a.ListVoices(ctx)
	require.NoError(t, err)
	require.Equal(t, "Rachel", voices[0].Name)

	require.Equal(t, 2, a.SystemInfo(ctx).CPUCount)
}
