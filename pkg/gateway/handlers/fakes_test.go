package handlers

import (
	"context"
	"io"
	"sync"

	"github.com/anay-go/anay/pkg/assistant"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/voice/stt"
	"github.com/anay-go/anay/pkg/core/voice/tts"
)

type fakeAssistant struct {
	mu sync.Mutex

	reply      *assistant.Reply
	respondErr error
	chunks     [][]byte
	speakErr   error
	noTTS      bool
	transcript string
	voices     []tts.Voice

	gotKey    string
	gotText   string
	gotAudio  []byte
	gotFormat string
	gotVoice  string
	cleared   []string
}

func (a *fakeAssistant) Respond(ctx context.Context, sessionKey, text string) (*assistant.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gotKey, a.gotText = sessionKey, text
	if a.respondErr != nil {
		return nil, a.respondErr
	}
	if a.reply != nil {
		return a.reply, nil
	}
	return &assistant.Reply{Text: "echo: " + text, Source: assistant.SourceLLM}, nil
}

func (a *fakeAssistant) Speak(ctx context.Context, text, voiceID string) (*tts.SynthesisStream, error) {
	a.mu.Lock()
	a.gotVoice = voiceID
	a.mu.Unlock()
	if a.noTTS {
		return nil, nil
	}
	if a.speakErr != nil {
		return nil, a.speakErr
	}
	stream := tts.NewSynthesisStream()
	go func() {
		defer stream.FinishSending()
		for _, c := range a.chunks {
			if !stream.Send(c) {
				return
			}
		}
	}()
	return stream, nil
}

func (a *fakeAssistant) Transcribe(ctx context.Context, audio io.Reader, format string) (*stt.Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.gotAudio, a.gotFormat = data, format
	a.mu.Unlock()
	return &stt.Transcript{Text: a.transcript, Confidence: 0.9}, nil
}

func (a *fakeAssistant) NewLiveTranscription(ctx context.Context) (stt.LiveStream, error) {
	return nil, core.NewUnavailableError("stt")
}

func (a *fakeAssistant) ClearHistory(ctx context.Context, sessionKey string) error {
	a.mu.Lock()
	a.cleared = append(a.cleared, sessionKey)
	a.mu.Unlock()
	return nil
}

func (a *fakeAssistant) SystemInfo(ctx context.Context) sysmon.Info {
	return sysmon.Info{Platform: "linux", CPUCount: 8, CPULoad: 12.5}
}

func (a *fakeAssistant) Capabilities() assistant.Capabilities {
	return assistant.Capabilities{LLM: true, STT: true, TTS: !a.noTTS}
}

func (a *fakeAssistant) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	if a.voices == nil {
		return nil, core.NewUnavailableError("tts")
	}
	return a.voices, nil
}
