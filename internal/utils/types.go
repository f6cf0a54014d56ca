package utils

import "context"

type Downloader interface {
	ValidateJob(job *DroidJob) error
	BuildJob(job *DroidJob) error
	Download(ctx context.Context, job *DroidJob) error
}

type DroidJob struct {
	ID               string
	JobType          string
	URL              string
	OutputPath       string
	Force            bool
	ProgressType     string
	ProgressFunc     func(downloaded, total int64)
	StreamFunc       func(line string)
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
}

type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
}
