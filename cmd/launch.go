package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/droidup/internal/launcher"
	"github.com/tanq16/droidup/internal/output"
	"github.com/tanq16/droidup/internal/presence"
)

func newLaunchCmd() *cobra.Command {
	var outputPath string
	var serial string
	var force bool
	var hold bool

	cmd := &cobra.Command{
		Use:   "launch [APK_URL or PATH] [--output OUTPUT_PATH]",
		Short: "Boot the emulator, fetch and install the package, then start it",
		Long: `Run the whole flow: boot the configured virtual device (reusing it when it
is already running), download the APK unless it is already present, install
it and start the package's activity.

When presence.client_id is configured, each stage is published as chat
presence; --hold keeps the presence up until Ctrl+C.

Examples:
  droidup launch https://example.com/game.apk
  droidup launch --package org.jboss.aerogear --activity AeroGearMain app.apk`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := launcher.LaunchOptions{OutputPath: outputPath, Force: force, Serial: serial}
			apk := packageArg(args)
			if isRemote(apk) {
				opts.URL = apk
				if opts.OutputPath == "" {
					opts.OutputPath = cfg.Package.Path
				}
			} else if apk != "" {
				opts.OutputPath = apk
			}

			l, cleanup, err := newLauncher()
			if err != nil {
				return err
			}
			defer cleanup()

			if cfg.Presence.ClientID != "" {
				client, err := presence.Dial(ctx, cfg.Presence.ClientID)
				if err != nil {
					log.Warn().Str("op", "cmd/launch").Err(err).Msg("Presence unavailable")
					output.PrintWarning(fmt.Sprintf("Presence unavailable: %v", err))
				} else {
					defer client.Close()
					l.Presence = client
				}
			}

			if err := runSteps(l, func() error { return l.Launch(ctx, opts) }); err != nil {
				return err
			}
			if hold && l.Presence != nil {
				output.PrintInfo("Presence is up, press Ctrl+C to exit")
				<-ctx.Done()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Where to store the downloaded APK")
	cmd.Flags().StringVarP(&serial, "serial", "s", "", "Use an attached device instead of the emulator")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download even if the output file already exists")
	cmd.Flags().BoolVar(&hold, "hold", false, "Keep running to hold the presence status")
	cmd.Flags().String("package", "", "Package name to start")
	cmd.Flags().String("activity", "", "Activity to start (launcher activity if empty)")
	bindFlags(cmd.Flags(), map[string]string{
		"package":  "package.name",
		"activity": "package.activity",
	})
	return cmd
}
