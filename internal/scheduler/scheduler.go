package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/droidup/internal/downloader"
	"github.com/tanq16/droidup/internal/output"
	"github.com/tanq16/droidup/internal/utils"
)

// downloaderRegistry maps job types to their respective downloader implementations
var downloaderRegistry = map[string]utils.Downloader{
	"http": &downloader.FetchDownloader{},
	"s3":   &downloader.FetchDownloader{},
}

// Scheduler runs jobs on a fixed pool of workers and reports into an output manager.
type Scheduler struct {
	Registry map[string]utils.Downloader
	Output   *output.Manager
}

func New() *Scheduler {
	return &Scheduler{Registry: downloaderRegistry, Output: output.NewManager()}
}

// Run executes the jobs with the default registry and a terminal display.
func Run(ctx context.Context, jobs []utils.DroidJob, numWorkers int) error {
	return New().Run(ctx, jobs, numWorkers)
}

func (s *Scheduler) Run(ctx context.Context, jobs []utils.DroidJob, numWorkers int) error {
	s.Output.StartDisplay()
	jobCh := make(chan utils.DroidJob, len(jobs))
	for _, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		jobCh <- job
	}
	close(jobCh)

	numWorkers = max(1, min(numWorkers, len(jobs)))
	log.Debug().Str("op", "scheduler").Msgf("Starting %d workers for %d jobs", numWorkers, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.processJobs(ctx, jobCh)
		}()
	}
	wg.Wait()
	s.Output.StopDisplay()

	if failed := s.Output.ErrorCount(); failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

func (s *Scheduler) processJobs(ctx context.Context, jobCh <-chan utils.DroidJob) {
	for job := range jobCh {
		jobID := s.Output.RegisterJob(job.URL)
		runner, exists := s.Registry[job.JobType]
		if !exists {
			s.Output.SetMessage(jobID, fmt.Sprintf("Unknown job type %s", job.JobType))
			s.Output.ReportError(jobID, fmt.Errorf("unknown job type: %s", job.JobType))
			continue
		}

		s.Output.SetStatus(jobID, output.StatusActive)
		s.Output.SetMessage(jobID, fmt.Sprintf("Validating %s job", job.JobType))
		if err := runner.ValidateJob(&job); err != nil {
			s.Output.SetMessage(jobID, fmt.Sprintf("Validation failed for %s", job.URL))
			s.Output.ReportError(jobID, fmt.Errorf("validation failed: %v", err))
			continue
		}
		if err := runner.BuildJob(&job); err != nil {
			s.Output.SetMessage(jobID, fmt.Sprintf("Build failed for %s", job.URL))
			s.Output.ReportError(jobID, fmt.Errorf("build failed: %v", err))
			continue
		}

		s.Output.SetMessage(jobID, fmt.Sprintf("Downloading %s", job.OutputPath))
		job.ProgressFunc = func(downloaded, total int64) {
			s.Output.SetProgress(jobID, downloaded, total)
		}
		job.StreamFunc = func(line string) {
			s.Output.AddStreamLine(jobID, line)
		}
		if err := runner.Download(ctx, &job); err != nil {
			s.Output.SetMessage(jobID, fmt.Sprintf("Download failed for %s", job.OutputPath))
			s.Output.ReportError(jobID, err)
			log.Error().Str("op", "scheduler").Str("job", job.ID).Err(err).Msg("Job failed")
			continue
		}
		if skipped, _ := job.Metadata["skipped"].(bool); skipped {
			s.Output.Complete(jobID, fmt.Sprintf("Already present %s", job.OutputPath))
			continue
		}
		s.Output.Complete(jobID, fmt.Sprintf("Completed %s", job.OutputPath))
	}
}
