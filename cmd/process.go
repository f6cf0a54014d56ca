package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/droidup/internal/android"
	"github.com/tanq16/droidup/internal/launcher"
	"github.com/tanq16/droidup/internal/output"
	"github.com/tanq16/droidup/internal/scheduler"
	"github.com/tanq16/droidup/internal/utils"
)

const emulatorLogFile = ".droidup-emulator.log"

// jobTypeFor maps a link to the scheduler job type that handles it.
func jobTypeFor(link string) string {
	if strings.HasPrefix(strings.ToLower(link), "s3://") {
		return "s3"
	}
	return "http"
}

// isRemote reports whether link names something to download rather than a local file.
func isRemote(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "s3":
		return true
	}
	return false
}

func newJob(link, outputPath string, force bool, profile string) utils.DroidJob {
	job := utils.DroidJob{
		JobType:          jobTypeFor(link),
		URL:              link,
		OutputPath:       outputPath,
		Force:            force,
		ProgressType:     "progress",
		HTTPClientConfig: globalHTTPConfig,
		Metadata:         make(map[string]any),
	}
	if job.JobType == "s3" {
		job.Metadata["profile"] = profile
	}
	return job
}

// withLiveLog sends log lines to utils.LogFile while a live display owns the terminal.
func withLiveLog(fn func() error) error {
	if output.IsTerminal() {
		closeLog, err := utils.LogToFile()
		if err != nil {
			log.Warn().Str("op", "cmd").Err(err).Msg("Could not open log file, logging to stderr")
		}
		defer closeLog()
	}
	return fn()
}

func runJobs(ctx context.Context, jobs []utils.DroidJob) error {
	return withLiveLog(func() error {
		return scheduler.Run(ctx, jobs, cfg.Workers)
	})
}

// newLauncher wires a launcher to the real SDK tools. Emulator output goes to
// emulatorLogFile since the emulator outlives the command.
func newLauncher() (*launcher.Launcher, func(), error) {
	l := launcher.New(cfg, android.ExecRunner{})
	l.HTTPClientConfig = globalHTTPConfig
	logFile, err := os.OpenFile(emulatorLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, func() {}, fmt.Errorf("error opening emulator log: %v", err)
	}
	l.EmulatorLog = logFile
	return l, func() { logFile.Close() }, nil
}

// runSteps shows launcher steps on an output manager while fn runs.
func runSteps(l *launcher.Launcher, fn func() error) error {
	manager := output.NewManager()
	observer := newStepObserver(manager)
	if !output.IsTerminal() {
		observer.announce = output.PrintStep
	}
	l.Observer = observer
	return withLiveLog(func() error {
		manager.StartDisplay()
		err := fn()
		manager.StopDisplay()
		return err
	})
}

// stepObserver renders each launcher step as one job line. Without a live
// display, announce prints each step as it starts.
type stepObserver struct {
	manager  *output.Manager
	ids      map[launcher.Step]int
	announce func(string)
}

func newStepObserver(manager *output.Manager) *stepObserver {
	return &stepObserver{manager: manager, ids: make(map[launcher.Step]int)}
}

func (o *stepObserver) StepStarted(step launcher.Step, message string) {
	id := o.manager.RegisterJob(string(step))
	o.ids[step] = id
	o.manager.SetStatus(id, output.StatusActive)
	o.manager.SetMessage(id, message)
	if o.announce != nil {
		o.announce(message)
	}
}

func (o *stepObserver) StepProgress(step launcher.Step, written, total int64) {
	if id, ok := o.ids[step]; ok {
		o.manager.SetProgress(id, written, total)
	}
}

func (o *stepObserver) StepFinished(step launcher.Step, message string, err error) {
	id, ok := o.ids[step]
	if !ok {
		return
	}
	if err != nil {
		o.manager.SetMessage(id, message)
		o.manager.ReportError(id, err)
		return
	}
	o.manager.Complete(id, message)
}
