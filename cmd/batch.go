package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/droidup/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var profile string
	var force bool

	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Long: `Process multiple downloads from a YAML list of entries:

  - link: https://example.com/game.apk
    op: apks/game.apk
  - link: s3://mybucket/builds/tools.zip

Use --workers to download several entries in parallel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := utils.ReadDownloadList(args[0])
			if err != nil {
				return fmt.Errorf("error reading download list: %v", err)
			}
			jobs := buildJobs(entries, force, profile)
			if len(jobs) == 0 {
				return fmt.Errorf("no valid jobs found in %s", args[0])
			}
			return runJobs(cmd.Context(), jobs)
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile to use for s3:// links")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download even if output files already exist")
	return cmd
}

func buildJobs(entries []utils.DownloadEntry, force bool, profile string) []utils.DroidJob {
	var jobs []utils.DroidJob
	for i, entry := range entries {
		if entry.URL == "" {
			log.Warn().Str("op", "cmd/batch").Msgf("Entry %d has no link, skipping", i+1)
			continue
		}
		jobs = append(jobs, newJob(entry.URL, entry.OutputPath, force, profile))
	}
	return jobs
}
