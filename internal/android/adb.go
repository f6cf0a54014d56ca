package android

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

type ADB struct {
	Runner Runner
	Tools  *Tools
}

func NewADB(runner Runner, tools *Tools) *ADB {
	return &ADB{Runner: runner, Tools: tools}
}

func (a *ADB) run(ctx context.Context, serial string, args ...string) (*Result, error) {
	if serial != "" {
		args = append([]string{"-s", serial}, args...)
	}
	return a.Runner.Run(ctx, "", a.Tools.Path(ToolADB), args...)
}

// Devices returns serials of attached devices in the "device" state.
func (a *ADB) Devices(ctx context.Context) ([]string, error) {
	result, err := a.run(ctx, "", "devices")
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %v", err)
	}
	var serials []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials, nil
}

// Install installs (or reinstalls) apkPath on the device.
func (a *ADB) Install(ctx context.Context, serial, apkPath string) (string, error) {
	result, err := a.run(ctx, serial, "install", "-r", apkPath)
	if err != nil {
		return "", fmt.Errorf("error installing %s: %v", apkPath, err)
	}
	// older adb versions exit 0 and print the failure
	if line := findLine(result.Stdout+"\n"+result.Stderr, "Failure"); line != "" {
		return "", fmt.Errorf("error installing %s: %s", apkPath, line)
	}
	log.Info().Str("op", "android/adb").Msgf("Installed %s", apkPath)
	return strings.TrimSpace(result.Stdout), nil
}

// Component builds the am start component name; a bare class name is
// treated as relative to the package.
func Component(pkg, activity string) string {
	if !strings.Contains(activity, ".") {
		activity = "." + activity
	}
	return pkg + "/" + activity
}

// StartActivity starts activity, or the package's launcher activity when
// activity is empty.
func (a *ADB) StartActivity(ctx context.Context, serial, pkg, activity string) (string, error) {
	var args []string
	if activity == "" {
		args = []string{"shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1"}
	} else {
		args = []string{"shell", "am", "start", "-n", Component(pkg, activity)}
	}
	result, err := a.run(ctx, serial, args...)
	if err != nil {
		return "", fmt.Errorf("error starting %s: %v", pkg, err)
	}
	for _, marker := range []string{"Error", "No activities found"} {
		if line := findLine(result.Stdout+"\n"+result.Stderr, marker); line != "" {
			return "", fmt.Errorf("error starting %s: %s", pkg, line)
		}
	}
	log.Info().Str("op", "android/adb").Msgf("Started %s", pkg)
	return strings.TrimSpace(result.Stdout), nil
}

func findLine(text, marker string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, marker) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
