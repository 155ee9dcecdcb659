package main

import (
	"context"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	anay "github.com/anay-go/anay/sdk"
)

func newVoicesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the ElevenLabs voices available to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			client := anay.NewClient(opts.server, opts.apiKey, &http.Client{})
			voices, err := client.Voices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no voices available")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VOICE ID\tNAME\tCATEGORY")
			for _, v := range voices {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.VoiceID, v.Name, v.Category)
			}
			return tw.Flush()
		},
	}
}
