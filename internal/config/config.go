package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Android  AndroidConfig  `mapstructure:"android"`
	Package  PackageConfig  `mapstructure:"package"`
	Presence PresenceConfig `mapstructure:"presence"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Workers  int            `mapstructure:"workers"`
	Debug    bool           `mapstructure:"debug"`
}

// AndroidConfig describes the virtual device to prepare
type AndroidConfig struct {
	SDKRoot     string        `mapstructure:"sdk_root"`
	AVDName     string        `mapstructure:"avd_name"`
	SystemImage string        `mapstructure:"system_image"`
	Port        int           `mapstructure:"emulator_port"`
	NoAudio     bool          `mapstructure:"no_audio"`
	NoWindow    bool          `mapstructure:"no_window"`
	BootTimeout time.Duration `mapstructure:"boot_timeout"`
}

// PackageConfig describes the APK to fetch and launch
type PackageConfig struct {
	URL      string `mapstructure:"url"`
	Path     string `mapstructure:"path"`
	Name     string `mapstructure:"name"`
	Activity string `mapstructure:"activity"`
}

type PresenceConfig struct {
	ClientID   string `mapstructure:"client_id"`
	Details    string `mapstructure:"details"`
	LargeImage string `mapstructure:"large_image"`
}

type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	KATimeout     time.Duration `mapstructure:"keep_alive_timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	Proxy         string        `mapstructure:"proxy"`
	ProxyUsername string        `mapstructure:"proxy_username"`
	ProxyPassword string        `mapstructure:"proxy_password"`
	Headers       []string      `mapstructure:"headers"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("android.sdk_root", "")
	v.SetDefault("android.avd_name", "droidup")
	v.SetDefault("android.system_image", "system-images;android-30;google_apis;x86_64")
	v.SetDefault("android.emulator_port", 5554)
	v.SetDefault("android.no_audio", true)
	v.SetDefault("android.no_window", false)
	v.SetDefault("android.boot_timeout", "5m")
	v.SetDefault("package.url", "")
	v.SetDefault("package.path", "")
	v.SetDefault("package.name", "com.mojang.minecraftpe")
	v.SetDefault("package.activity", "")
	v.SetDefault("presence.client_id", "")
	v.SetDefault("presence.details", "droidup")
	v.SetDefault("presence.large_image", "")
	v.SetDefault("http.timeout", "3m")
	v.SetDefault("http.keep_alive_timeout", "90s")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.proxy", "")
	v.SetDefault("http.proxy_username", "")
	v.SetDefault("http.proxy_password", "")
	v.SetDefault("http.headers", []string{})
	v.SetDefault("workers", 1)
	v.SetDefault("debug", false)
}

// DefaultPath is $XDG_CONFIG_HOME/droidup/config.yaml (or the OS equivalent)
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "droidup", "config.yaml")
}

// Load reads configuration into v from configPath. A missing file at the
// default location is not an error; a missing explicit file is.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("DROIDUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath()
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Android.Port != 0 && (c.Android.Port < 5554 || c.Android.Port > 5682 || c.Android.Port%2 != 0) {
		return fmt.Errorf("android.emulator_port must be an even number between 5554 and 5682")
	}
	if c.Android.BootTimeout <= 0 {
		return fmt.Errorf("android.boot_timeout must be positive")
	}
	if c.HTTP.Timeout < 0 || c.HTTP.KATimeout < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	return nil
}
