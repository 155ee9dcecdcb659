// Command anay is the terminal client for an ANAY server.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

type globalOptions struct {
	server  string
	apiKey  string
	session string
	timeout time.Duration
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "anay",
		Short:         "Talk to your ANAY assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			if !cmd.Flags().Changed("server") {
				opts.server = envOr("ANAY_SERVER", opts.server)
			}
			if !cmd.Flags().Changed("api-key") {
				opts.apiKey = envOr("ANAY_API_KEY", opts.apiKey)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", defaultServerURL, "Server base URL (or set ANAY_SERVER)")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "Server API key (or set ANAY_API_KEY)")
	root.PersistentFlags().StringVar(&opts.session, "session", "", "Conversation to continue (default: a new one)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Per-turn timeout")

	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newVoiceCmd(opts))
	root.AddCommand(newVoicesCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "anay: %v\n", err)
		os.Exit(1)
	}
}
