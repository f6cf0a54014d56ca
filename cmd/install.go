package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/droidup/internal/android"
)

func newInstallCmd() *cobra.Command {
	var outputPath string
	var serial string
	var force bool

	cmd := &cobra.Command{
		Use:   "install [APK_PATH or URL] [--serial SERIAL]",
		Short: "Install an APK on a running device, downloading it first if needed",
		Long: `Install an APK with adb. A URL (http, https or s3) is downloaded first,
honouring --output and --force. Without an argument the configured
package.url or package.path is used. The target defaults to the emulator on
the configured port.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			apk := packageArg(args)
			if apk == "" {
				return fmt.Errorf("no APK path or URL given and none configured")
			}
			if serial == "" {
				serial = android.Serial(cfg.Android.Port)
			}
			l, cleanup, err := newLauncher()
			if err != nil {
				return err
			}
			defer cleanup()

			return runSteps(l, func() error {
				if isRemote(apk) {
					var err error
					if apk, err = l.FetchPackage(ctx, apk, outputPath, force); err != nil {
						return err
					}
				}
				return l.Install(ctx, serial, apk)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Where to store a downloaded APK")
	cmd.Flags().StringVarP(&serial, "serial", "s", "", "adb serial of the target device")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download even if the output file already exists")
	return cmd
}

// packageArg picks the APK from the arguments, then package.url, then package.path.
func packageArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if cfg.Package.URL != "" {
		return cfg.Package.URL
	}
	return cfg.Package.Path
}
