package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anay-go/anay/pkg/core/audio"
	anay "github.com/anay-go/anay/sdk"
)

const defaultVoiceWindow = 5 * time.Second

type recorder interface {
	Record(ctx context.Context, d time.Duration) ([]byte, error)
}

type speaker interface {
	PlayMP3(ctx context.Context, r io.Reader) error
}

// voiceClient is the part of *anay.Client voice mode uses.
type voiceClient interface {
	Transcribe(ctx context.Context, audio []byte, format string) (*anay.Transcription, error)
	Chat(ctx context.Context, text, sessionID string) (*anay.ChatReply, error)
	Speak(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

type voiceOptions struct {
	window  time.Duration
	voiceID string
	session string
	timeout time.Duration
	rounds  int
}

func newVoiceCmd(opts *globalOptions) *cobra.Command {
	vo := voiceOptions{}
	var mute bool

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Hands-free voice mode using the local microphone and speakers",
		Long: `Record a fixed window from the microphone, transcribe it, answer it
and speak the answer, then listen again. Silent windows are skipped.
Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mic, err := newMalgoRecorder(audio.Speech())
			if err != nil {
				return err
			}
			defer mic.Close()

			var spk speaker
			if !mute {
				spk = newOtoSpeaker()
			}

			vo.session = opts.session
			vo.timeout = opts.timeout
			client := anay.NewClient(opts.server, opts.apiKey, &http.Client{})
			return runVoice(ctx, cmd.OutOrStdout(), client, mic, spk, vo)
		},
	}
	cmd.Flags().DurationVar(&vo.window, "window", defaultVoiceWindow, "Recording window per utterance")
	cmd.Flags().StringVar(&vo.voiceID, "voice", "", "ElevenLabs voice id (default: server's voice)")
	cmd.Flags().BoolVar(&mute, "mute", false, "Print replies without speaking them")
	return cmd
}

// runVoice loops record, transcribe, respond, speak until ctx ends or
// rounds windows were recorded (0 means no limit).
func runVoice(ctx context.Context, out io.Writer, client voiceClient, mic recorder, spk speaker, o voiceOptions) error {
	if o.window <= 0 {
		o.window = defaultVoiceWindow
	}
	if o.timeout <= 0 {
		o.timeout = time.Minute
	}
	format := audio.Speech()

	for n := 0; o.rounds == 0 || n < o.rounds; n++ {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(out, "listening (%s)...\n", o.window)
		pcm, err := mic.Record(ctx, o.window)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("record: %w", err)
		}
		if err := voiceTurn(ctx, out, client, spk, o, audio.EncodeWAV(pcm, format.SampleRate, format.Channels)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
	return nil
}

func voiceTurn(ctx context.Context, out io.Writer, client voiceClient, spk speaker, o voiceOptions, wav []byte) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	tr, err := client.Transcribe(ctx, wav, "wav")
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return nil
	}
	fmt.Fprintf(out, "you> %s\n", text)

	reply, err := client.Chat(ctx, text, o.session)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	fmt.Fprintf(out, "anay> %s\n", reply.Text)

	if spk == nil || strings.TrimSpace(reply.Text) == "" {
		return nil
	}
	stream, err := client.Speak(ctx, reply.Text, o.voiceID)
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	defer stream.Close()
	if err := spk.PlayMP3(ctx, stream); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
