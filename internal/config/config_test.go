package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolateHome(t)
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "droidup", cfg.Android.AVDName)
	assert.Equal(t, "system-images;android-30;google_apis;x86_64", cfg.Android.SystemImage)
	assert.Equal(t, 5554, cfg.Android.Port)
	assert.Equal(t, 5*time.Minute, cfg.Android.BootTimeout)
	assert.Equal(t, 3*time.Minute, cfg.HTTP.Timeout)
	assert.Equal(t, 1, cfg.Workers)
	assert.Empty(t, cfg.Presence.ClientID)
}

func TestLoadFileAndEnv(t *testing.T) {
	isolateHome(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
android:
  avd_name: pixel
  emulator_port: 5556
  boot_timeout: 90s
package:
  url: https://example.com/game.apk
  activity: .MainActivity
http:
  headers:
    - "Authorization: Bearer abc"
workers: 4
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	t.Setenv("DROIDUP_PRESENCE_CLIENT_ID", "987654321")

	cfg, err := Load(viper.New(), configPath)
	require.NoError(t, err)
	assert.Equal(t, "pixel", cfg.Android.AVDName)
	assert.Equal(t, 5556, cfg.Android.Port)
	assert.Equal(t, 90*time.Second, cfg.Android.BootTimeout)
	assert.Equal(t, "https://example.com/game.apk", cfg.Package.URL)
	assert.Equal(t, ".MainActivity", cfg.Package.Activity)
	assert.Equal(t, []string{"Authorization: Bearer abc"}, cfg.HTTP.Headers)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "987654321", cfg.Presence.ClientID)
}

func TestLoadErrors(t *testing.T) {
	isolateHome(t)
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("android:\n  emulator_port: 5555\n"), 0644))
	_, err = Load(viper.New(), configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emulator_port")
}
