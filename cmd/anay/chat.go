package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	anay "github.com/anay-go/anay/sdk"
	"github.com/anay-go/anay/pkg/gateway/live/protocol"
)

const chatPrompt = "you> "

// chatSession is the part of *anay.Session the chat loop drives.
type chatSession interface {
	SendText(text string) error
	Control(op string) error
	UpdateSettings(speak *bool, voiceID string) error
	Events() <-chan anay.Event
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive text chat over the live socket",
		Long: `Chat with the assistant over the live WebSocket. The connection is
re-established automatically if it drops.

Commands: /clear forgets the conversation, /cancel stops the current
reply, /system prints host stats, /quit exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dialOpts := []anay.Option{
				anay.WithAPIKey(opts.apiKey),
				anay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			}
			if opts.session != "" {
				dialOpts = append(dialOpts, anay.WithSessionKey(opts.session))
			}
			sess, err := anay.Dial(ctx, opts.server, dialOpts...)
			if err != nil {
				return err
			}
			defer sess.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "connected (session %s)\n", sess.SessionKey())
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), sess, opts.timeout)
		},
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runChat reads lines from in and sends each as a turn, waiting for its
// reply before prompting again.
func runChat(ctx context.Context, in io.Reader, out io.Writer, sess chatSession, turnTimeout time.Duration) error {
	out = &syncWriter{w: out}

	speak := false
	muteSpeech := func() error { return sess.UpdateSettings(&speak, "") }
	if err := muteSpeech(); err != nil {
		return fmt.Errorf("disable speech: %w", err)
	}

	replies := make(chan struct{}, 1)
	ended := make(chan error, 1)
	go func() { ended <- printEvents(out, sess.Events(), replies, muteSpeech) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, chatPrompt)
		var line string
		select {
		case <-ctx.Done():
			return nil
		case err := <-ended:
			return err
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		var err error
		wait := true
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			err, wait = sess.Control(protocol.OpClearHistory), false
		case "/cancel":
			err, wait = sess.Control(protocol.OpCancel), false
		case "/system":
			err = sess.Control(protocol.OpSystemInfo)
		default:
			err = sess.SendText(line)
		}
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}
		if !wait {
			continue
		}

		timer := time.NewTimer(turnTimeout)
		select {
		case <-replies:
		case err := <-ended:
			timer.Stop()
			return err
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			fmt.Fprintln(out, "! no reply yet; still waiting in the background")
		}
		timer.Stop()
	}
}

// printEvents renders server events until the session ends. It signals
// replies for every frame that completes a turn and calls onReconnect after
// each redial, since settings do not survive a new connection.
func printEvents(out io.Writer, events <-chan anay.Event, replies chan<- struct{}, onReconnect func() error) error {
	signalReply := func() {
		select {
		case replies <- struct{}{}:
		default:
		}
	}
	for ev := range events {
		switch e := ev.(type) {
		case anay.ResponseEvent:
			fmt.Fprintf(out, "anay> %s\n", e.Response.Text)
			if e.Response.Error != "" {
				fmt.Fprintf(out, "  (model unavailable: %s)\n", e.Response.Error)
			}
			signalReply()
		case anay.SystemInfoEvent:
			info := e.Info
			fmt.Fprintf(out, "system> cpu %.1f%% memory %.1f%% (%s)\n", info.CPULoad, info.RAMUsage, info.Platform)
			signalReply()
		case anay.ErrorEvent:
			fmt.Fprintf(out, "! %s: %s\n", e.Error.Code, e.Error.Message)
			signalReply()
		case anay.WarningEvent:
			fmt.Fprintf(out, "! %s\n", e.Warning.Message)
			if e.Warning.Code == "empty_transcript" {
				signalReply()
			}
		case anay.DisconnectedEvent:
			if e.Final {
				return fmt.Errorf("disconnected: %w", e.Err)
			}
			fmt.Fprintln(out, "(connection lost, reconnecting...)")
		case anay.ReconnectedEvent:
			fmt.Fprintln(out, "(reconnected)")
			if onReconnect != nil {
				if err := onReconnect(); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
			}
		}
	}
	return nil
}
