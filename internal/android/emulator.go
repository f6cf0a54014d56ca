package android

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrBootTimeout = errors.New("emulator did not finish booting in time")

type Emulator struct {
	Runner       Runner
	Tools        *Tools
	PollInterval time.Duration
}

func NewEmulator(runner Runner, tools *Tools) *Emulator {
	return &Emulator{Runner: runner, Tools: tools, PollInterval: 2 * time.Second}
}

// Serial is the adb serial of an emulator listening on the given console port.
func Serial(port int) string {
	return "emulator-" + strconv.Itoa(port)
}

func (e *Emulator) ListAVDs(ctx context.Context) ([]string, error) {
	result, err := e.Runner.Run(ctx, "", e.Tools.Path(ToolEmulator), "-list-avds")
	if err != nil {
		return nil, fmt.Errorf("error listing AVDs: %v", err)
	}
	var avds []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		// newer emulator builds print INFO lines before the list
		if line == "" || strings.HasPrefix(line, "INFO") {
			continue
		}
		avds = append(avds, line)
	}
	return avds, nil
}

// EnsureAVD creates the named AVD from systemImage unless it already exists.
// It reports whether a new AVD was created.
func (e *Emulator) EnsureAVD(ctx context.Context, name, systemImage string) (bool, error) {
	avds, err := e.ListAVDs(ctx)
	if err != nil {
		return false, err
	}
	for _, avd := range avds {
		if avd == name {
			log.Debug().Str("op", "android/emulator").Msgf("AVD %s already exists", name)
			return false, nil
		}
	}
	log.Info().Str("op", "android/emulator").Msgf("Creating AVD %s from %s", name, systemImage)
	// avdmanager asks whether to create a custom hardware profile
	_, err = e.Runner.Run(ctx, "no\n", e.Tools.Path(ToolAVDManager), "create", "avd", "-n", name, "-k", systemImage)
	if err != nil {
		return false, fmt.Errorf("error creating AVD %s: %v", name, err)
	}
	return true, nil
}

type StartOptions struct {
	Port     int
	NoAudio  bool
	NoWindow bool
	Extra    []string
}

func (o StartOptions) args(name string) []string {
	args := []string{"-avd", name}
	if o.Port > 0 {
		args = append(args, "-port", strconv.Itoa(o.Port))
	}
	if o.NoAudio {
		args = append(args, "-no-audio")
	}
	if o.NoWindow {
		args = append(args, "-no-window")
	}
	return append(args, o.Extra...)
}

// Start launches the AVD. Emulator output is written to out.
func (e *Emulator) Start(name string, opts StartOptions, out io.Writer) (*Process, error) {
	proc, err := e.Runner.Start(e.Tools.Path(ToolEmulator), opts.args(name), out)
	if err != nil {
		return nil, fmt.Errorf("error starting AVD %s: %v", name, err)
	}
	log.Info().Str("op", "android/emulator").Msgf("Started AVD %s", name)
	return proc, nil
}

// WaitForBoot blocks until the device reports sys.boot_completed=1.
func (e *Emulator) WaitForBoot(ctx context.Context, serial string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	adb := e.Tools.Path(ToolADB)
	if _, err := e.Runner.Run(ctx, "", adb, "-s", serial, "wait-for-device"); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrBootTimeout, serial)
		}
		return fmt.Errorf("error waiting for %s: %v", serial, err)
	}
	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()
	for {
		result, err := e.Runner.Run(ctx, "", adb, "-s", serial, "shell", "getprop", "sys.boot_completed")
		if err == nil && strings.TrimSpace(result.Stdout) == "1" {
			log.Info().Str("op", "android/emulator").Msgf("%s finished booting", serial)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrBootTimeout, serial)
		case <-ticker.C:
		}
	}
}
