package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/droidup/internal/utils"
)

func newFetchCmd() *cobra.Command {
	var outputPath string
	var profile string
	var force bool

	cmd := &cobra.Command{
		Use:     "fetch [URL] [--output OUTPUT_PATH]",
		Aliases: []string{"get"},
		Short:   "Download a file via HTTP/HTTPS or from AWS S3",
		Long: `Download a single file with live progress.

An existing file at the output path is kept and the download is skipped;
pass --force to download again.

Examples:
  droidup fetch https://example.com/game.apk
  droidup fetch s3://mybucket/builds/game.apk -o apks/game.apk --profile ci`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := newJob(args[0], outputPath, force, profile)
			return runJobs(cmd.Context(), []utils.DroidJob{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the URL if not provided)")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile to use for s3:// links")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download even if the output file already exists")
	return cmd
}
