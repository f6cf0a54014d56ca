package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tanq16/droidup/internal/android"
	"github.com/tanq16/droidup/internal/output"
)

func newEmulatorCmd() *cobra.Command {
	var list bool
	var attach bool

	cmd := &cobra.Command{
		Use:   "emulator [--avd NAME] [--port PORT]",
		Short: "Create the configured virtual device if needed and boot it",
		Long: `Create the configured Android virtual device when it does not exist yet,
start it and wait until it has finished booting. The emulator keeps running
after droidup exits; its output is appended to ` + emulatorLogFile + `.

Use --attach to keep the emulator in the foreground with its output on the
terminal, and --list to show the available virtual devices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, cleanup, err := newLauncher()
			if err != nil {
				return err
			}
			defer cleanup()

			if list {
				avds, err := l.Emulator.ListAVDs(ctx)
				if err != nil {
					return err
				}
				if len(avds) == 0 {
					output.PrintWarning("No virtual devices found")
					return nil
				}
				output.PrintHeader("Virtual devices")
				for _, avd := range avds {
					output.PrintStream(avd)
				}
				return nil
			}

			emu := cfg.Android
			if attach {
				if _, err := l.Emulator.EnsureAVD(ctx, emu.AVDName, emu.SystemImage); err != nil {
					return err
				}
				proc, err := l.Emulator.Start(emu.AVDName, android.StartOptions{Port: emu.Port, NoAudio: emu.NoAudio, NoWindow: emu.NoWindow}, os.Stdout)
				if err != nil {
					return err
				}
				output.PrintInfo(fmt.Sprintf("Emulator %s running as %s, press Ctrl+C to stop", emu.AVDName, android.Serial(emu.Port)))
				return waitAttached(ctx, proc)
			}

			return runSteps(l, func() error {
				_, err := l.PrepareEmulator(ctx)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List available virtual devices")
	cmd.Flags().BoolVar(&attach, "attach", false, "Run the emulator in the foreground")
	cmd.Flags().String("image", "", "System image used when the virtual device has to be created")
	bindFlags(cmd.Flags(), map[string]string{"image": "android.system_image"})
	return cmd
}

// waitAttached waits for proc and kills it if ctx is cancelled first. It
// returns only after the cancel watcher has exited.
func waitAttached(ctx context.Context, proc *android.Process) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			proc.Kill()
		case <-done:
		}
	}()
	err := proc.Wait()
	close(done)
	wg.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("emulator exited: %v", err)
	}
	return nil
}
