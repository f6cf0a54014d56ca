package downloader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/droidup/internal/utils"
)

// FetchDownloader adapts PerformDownload to the scheduler's job contract for
// http, https and s3 links.
type FetchDownloader struct {
	// NewSource overrides scheme based source selection.
	NewSource func(ctx context.Context, job *utils.DroidJob) (Source, error)
}

func (d *FetchDownloader) ValidateJob(job *utils.DroidJob) error {
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	switch parsedURL.Scheme {
	case "http", "https":
	case "s3":
		if _, _, err := ParseS3URL(job.URL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", utils.ErrUnsupportedScheme, parsedURL.Scheme)
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	log.Debug().Str("op", "downloader/jobs").Msgf("job validated for %s", job.URL)
	return nil
}

func (d *FetchDownloader) BuildJob(job *utils.DroidJob) error {
	if job.OutputPath == "" {
		job.OutputPath = utils.OutputPathFromURL(job.URL)
	} else if info, err := os.Stat(job.OutputPath); err == nil && info.IsDir() {
		job.OutputPath = filepath.Join(job.OutputPath, utils.OutputPathFromURL(job.URL))
	}
	log.Debug().Str("op", "downloader/jobs").Msgf("job built for %s -> %s", job.URL, job.OutputPath)
	return nil
}

func (d *FetchDownloader) Download(ctx context.Context, job *utils.DroidJob) error {
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	newSource := d.NewSource
	if newSource == nil {
		newSource = func(ctx context.Context, job *utils.DroidJob) (Source, error) {
			return SourceFor(ctx, job.URL, job)
		}
	}
	src, err := newSource(ctx, job)
	if err != nil {
		return err
	}
	session, err := PerformDownload(ctx, src, job.URL, job.OutputPath, Options{
		Force: job.Force,
		Progress: func(e Event) {
			switch e.Kind {
			case EventComplete:
				if job.StreamFunc != nil {
					job.StreamFunc(e.String())
				}
			default:
				if job.ProgressFunc != nil {
					job.ProgressFunc(e.Written, e.Total)
				}
			}
		},
	})
	job.Metadata["skipped"] = session.Skipped
	job.Metadata["totalDownloaded"] = session.Written
	job.Metadata["state"] = session.State.String()
	return err
}
