package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/droidup/internal/config"
	"github.com/tanq16/droidup/internal/output"
	"github.com/tanq16/droidup/internal/utils"
)

var (
	configPath       string
	cfg              *config.Config
	v                = viper.New()
	globalHTTPConfig utils.HTTPClientConfig
)

var DroidupVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "droidup",
	Short: "Droidup fetches Android packages and runs them on a local emulator",
	Long: `Droidup downloads APKs with live progress, prepares an Android virtual
device, installs and launches the package, and can publish what it is doing
as chat presence.`,
	Version:       DroidupVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading .env file: %v", err)
		}
		loaded, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		utils.InitLogger(cfg.Debug)
		globalHTTPConfig = httpClientConfig(cfg.HTTP)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}

func httpClientConfig(h config.HTTPConfig) utils.HTTPClientConfig {
	clientConfig := utils.HTTPClientConfig{
		Timeout:       h.Timeout,
		KATimeout:     h.KATimeout,
		ProxyURL:      h.Proxy,
		ProxyUsername: h.ProxyUsername,
		ProxyPassword: h.ProxyPassword,
		UserAgent:     h.UserAgent,
		Headers:       utils.ParseHeaderArgs(h.Headers),
	}
	if clientConfig.UserAgent == "randomize" {
		clientConfig.UserAgent = utils.GetRandomUserAgent()
	}
	utils.SplitProxyAuth(&clientConfig)
	return clientConfig
}

// bindFlags maps flag names to config keys so flags override file and env values.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/droidup/config.yaml)")
	flags.IntP("workers", "w", 1, "Number of downloads to run in parallel")
	flags.DurationP("timeout", "t", utils.DefaultTimeout, "Connection timeout (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", utils.DefaultKATimeout, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser user agent)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayP("header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")

	// emulator selection is shared by emulator, install and launch
	flags.String("sdk-root", "", "Android SDK root (defaults to ANDROID_SDK_ROOT or ANDROID_HOME)")
	flags.String("avd", "", "Name of the Android virtual device")
	flags.Int("port", 0, "Emulator console port (even, 5554-5682)")
	flags.Bool("no-window", false, "Run the emulator without a window")
	flags.Duration("boot-timeout", 0, "How long to wait for the emulator to boot")

	flags.String("client-id", "", "Application ID used for chat presence")
	flags.Bool("debug", false, "Enable debug logging")

	bindFlags(flags, map[string]string{
		"workers":            "workers",
		"timeout":            "http.timeout",
		"keep-alive-timeout": "http.keep_alive_timeout",
		"user-agent":         "http.user_agent",
		"proxy":              "http.proxy",
		"proxy-username":     "http.proxy_username",
		"proxy-password":     "http.proxy_password",
		"header":             "http.headers",
		"sdk-root":           "android.sdk_root",
		"avd":                "android.avd_name",
		"port":               "android.emulator_port",
		"no-window":          "android.no_window",
		"boot-timeout":       "android.boot_timeout",
		"client-id":          "presence.client_id",
		"debug":              "debug",
	})

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newEmulatorCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newLaunchCmd())
	rootCmd.AddCommand(newPresenceCmd())
}
