package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/droidup/internal/output"
	"github.com/tanq16/droidup/internal/presence"
)

func newPresenceCmd() *cobra.Command {
	var state string
	var clearStatus bool

	cmd := &cobra.Command{
		Use:   "presence [--state STATE] [--details DETAILS]",
		Short: "Publish a status to the local chat client",
		Long: `Connect to the chat client running on this machine over its local IPC
socket and set a status. The status stays up until Ctrl+C, or is cleared
immediately with --clear.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.Presence.ClientID == "" {
				return fmt.Errorf("presence needs an application ID (--client-id or presence.client_id)")
			}
			client, err := presence.Dial(ctx, cfg.Presence.ClientID)
			if err != nil {
				return err
			}
			defer client.Close()
			output.PrintSuccess(fmt.Sprintf("Connected as %s", client.User.Username))

			if clearStatus {
				if err := client.ClearActivity(ctx); err != nil {
					return err
				}
				output.PrintSuccess("Presence cleared")
				return nil
			}
			err = client.SetActivity(ctx, presence.Activity{
				State:      state,
				Details:    cfg.Presence.Details,
				StartedAt:  time.Now(),
				LargeImage: cfg.Presence.LargeImage,
			})
			if err != nil {
				return err
			}
			output.PrintInfo("Presence set, press Ctrl+C to exit")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Status line to show")
	cmd.Flags().BoolVar(&clearStatus, "clear", false, "Clear the current status and exit")
	cmd.Flags().String("details", "", "Details line to show")
	cmd.Flags().String("large-image", "", "Asset key of the large image")
	bindFlags(cmd.Flags(), map[string]string{
		"details":     "presence.details",
		"large-image": "presence.large_image",
	})
	return cmd
}
