// Package launcher strings the emulator, downloader and adb steps together
// into the fetch-install-launch flow, reporting each step to an Observer and,
// when configured, to the presence client.
package launcher

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/droidup/internal/android"
	"github.com/tanq16/droidup/internal/config"
	"github.com/tanq16/droidup/internal/downloader"
	"github.com/tanq16/droidup/internal/presence"
	"github.com/tanq16/droidup/internal/utils"
)

type Step string

const (
	StepEmulator Step = "emulator"
	StepFetch    Step = "fetch"
	StepInstall  Step = "install"
	StepStart    Step = "start"
)

type Observer interface {
	StepStarted(step Step, message string)
	StepProgress(step Step, written, total int64)
	StepFinished(step Step, message string, err error)
}

// StatusReporter publishes a status string; *presence.Client satisfies it.
type StatusReporter interface {
	SetActivity(ctx context.Context, activity presence.Activity) error
}

type Launcher struct {
	Config           *config.Config
	Emulator         *android.Emulator
	ADB              *android.ADB
	HTTPClientConfig utils.HTTPClientConfig
	// Source overrides scheme based source selection for downloads.
	Source      downloader.Source
	Presence    StatusReporter
	Observer    Observer
	EmulatorLog io.Writer
	startedAt   time.Time
}

func New(cfg *config.Config, runner android.Runner) *Launcher {
	tools := android.NewTools(cfg.Android.SDKRoot)
	return &Launcher{
		Config:      cfg,
		Emulator:    android.NewEmulator(runner, tools),
		ADB:         android.NewADB(runner, tools),
		Observer:    nopObserver{},
		EmulatorLog: io.Discard,
		startedAt:   time.Now(),
	}
}

type nopObserver struct{}

func (nopObserver) StepStarted(Step, string) {}
func (nopObserver) StepProgress(Step, int64, int64) {}
func (nopObserver) StepFinished(Step, string, error) {}

func (l *Launcher) report(ctx context.Context, state string) {
	if l.Presence == nil {
		return
	}
	err := l.Presence.SetActivity(ctx, presence.Activity{
		State:      state,
		Details:    l.Config.Presence.Details,
		StartedAt:  l.startedAt,
		LargeImage: l.Config.Presence.LargeImage,
	})
	if err != nil {
		log.Warn().Str("op", "launcher").Err(err).Msg("Could not update presence")
	}
}

// PrepareEmulator makes sure the configured AVD is running and booted and
// returns its adb serial. A device already attached on the configured port
// is reused.
func (l *Launcher) PrepareEmulator(ctx context.Context) (string, error) {
	cfg := l.Config.Android
	serial := android.Serial(cfg.Port)
	l.Observer.StepStarted(StepEmulator, fmt.Sprintf("Preparing AVD %s", cfg.AVDName))
	l.report(ctx, "Preparing emulator")

	if devices, err := l.ADB.Devices(ctx); err == nil && slices.Contains(devices, serial) {
		l.Observer.StepFinished(StepEmulator, fmt.Sprintf("Using running %s", serial), nil)
		return serial, nil
	}
	created, err := l.Emulator.EnsureAVD(ctx, cfg.AVDName, cfg.SystemImage)
	if err != nil {
		l.Observer.StepFinished(StepEmulator, "AVD setup failed", err)
		return "", err
	}
	if created {
		log.Info().Str("op", "launcher").Msgf("Created AVD %s", cfg.AVDName)
	}
	proc, err := l.Emulator.Start(cfg.AVDName, android.StartOptions{Port: cfg.Port, NoAudio: cfg.NoAudio, NoWindow: cfg.NoWindow}, l.EmulatorLog)
	if err != nil {
		l.Observer.StepFinished(StepEmulator, "Emulator start failed", err)
		return "", err
	}
	if err := l.Emulator.WaitForBoot(ctx, serial, cfg.BootTimeout); err != nil {
		proc.Kill()
		l.Observer.StepFinished(StepEmulator, "Emulator did not boot", err)
		return "", err
	}
	proc.Release()
	l.Observer.StepFinished(StepEmulator, fmt.Sprintf("%s booted", serial), nil)
	return serial, nil
}

// FetchPackage downloads link to outputPath unless the file is already there.
func (l *Launcher) FetchPackage(ctx context.Context, link, outputPath string, force bool) (string, error) {
	if outputPath == "" {
		outputPath = utils.OutputPathFromURL(link)
	}
	name := filepath.Base(outputPath)
	l.Observer.StepStarted(StepFetch, fmt.Sprintf("Downloading %s", name))
	l.report(ctx, fmt.Sprintf("Downloading %s", name))

	src := l.Source
	if src == nil {
		var err error
		src, err = downloader.SourceFor(ctx, link, &utils.DroidJob{URL: link, HTTPClientConfig: l.HTTPClientConfig})
		if err != nil {
			l.Observer.StepFinished(StepFetch, fmt.Sprintf("Download failed for %s", name), err)
			return "", err
		}
	}
	session, err := downloader.PerformDownload(ctx, src, link, outputPath, downloader.Options{
		Force: force,
		Progress: func(e downloader.Event) {
			if e.Kind != downloader.EventComplete {
				l.Observer.StepProgress(StepFetch, e.Written, e.Total)
			}
		},
	})
	if err != nil {
		l.Observer.StepFinished(StepFetch, fmt.Sprintf("Download failed for %s", name), err)
		return "", err
	}
	if session.Skipped {
		l.Observer.StepFinished(StepFetch, fmt.Sprintf("Already present %s", outputPath), nil)
	} else {
		l.Observer.StepFinished(StepFetch, fmt.Sprintf("Downloaded %s (%s)", outputPath, utils.FormatBytes(uint64(session.Written))), nil)
	}
	return outputPath, nil
}

func (l *Launcher) Install(ctx context.Context, serial, apkPath string) error {
	name := filepath.Base(apkPath)
	l.Observer.StepStarted(StepInstall, fmt.Sprintf("Installing %s", name))
	l.report(ctx, fmt.Sprintf("Installing %s", name))
	if _, err := l.ADB.Install(ctx, serial, apkPath); err != nil {
		l.Observer.StepFinished(StepInstall, fmt.Sprintf("Install failed for %s", name), err)
		return err
	}
	l.Observer.StepFinished(StepInstall, fmt.Sprintf("Installed %s", name), nil)
	return nil
}

func (l *Launcher) Start(ctx context.Context, serial string) error {
	pkg := l.Config.Package
	l.Observer.StepStarted(StepStart, fmt.Sprintf("Starting %s", pkg.Name))
	if _, err := l.ADB.StartActivity(ctx, serial, pkg.Name, pkg.Activity); err != nil {
		l.Observer.StepFinished(StepStart, fmt.Sprintf("Could not start %s", pkg.Name), err)
		return err
	}
	l.report(ctx, fmt.Sprintf("Playing %s", pkg.Name))
	l.Observer.StepFinished(StepStart, fmt.Sprintf("Started %s", pkg.Name), nil)
	return nil
}

type LaunchOptions struct {
	URL        string
	OutputPath string
	Force      bool
	// Serial targets an attached device and skips emulator preparation.
	Serial string
}

// Launch runs the full flow: emulator, download, install, start. It stops at
// the first failing step.
func (l *Launcher) Launch(ctx context.Context, opts LaunchOptions) error {
	if opts.URL == "" && opts.OutputPath == "" {
		return fmt.Errorf("no package URL or path configured")
	}
	serial := opts.Serial
	if serial == "" {
		var err error
		if serial, err = l.PrepareEmulator(ctx); err != nil {
			return err
		}
	}
	apkPath := opts.OutputPath
	if opts.URL != "" {
		var err error
		if apkPath, err = l.FetchPackage(ctx, opts.URL, opts.OutputPath, opts.Force); err != nil {
			return err
		}
	}
	if err := l.Install(ctx, serial, apkPath); err != nil {
		return err
	}
	return l.Start(ctx, serial)
}
