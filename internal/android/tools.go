package android

import (
	"os"
	"os/exec"
	"path/filepath"
)

const (
	ToolEmulator   = "emulator"
	ToolADB        = "adb"
	ToolAVDManager = "avdmanager"
)

// sdkSubdirs lists where each tool lives inside an Android SDK, newest layout first.
var sdkSubdirs = map[string][]string{
	ToolEmulator:   {"emulator", "tools"},
	ToolADB:        {"platform-tools"},
	ToolAVDManager: {filepath.Join("cmdline-tools", "latest", "bin"), filepath.Join("tools", "bin")},
}

// Tools locates Android SDK executables. SDK roots are tried in order: the
// configured root, ANDROID_SDK_ROOT, ANDROID_HOME; PATH is the fallback.
type Tools struct {
	SDKRoot  string
	LookPath func(file string) (string, error)
	Getenv   func(key string) string
}

func NewTools(sdkRoot string) *Tools {
	return &Tools{SDKRoot: sdkRoot, LookPath: exec.LookPath, Getenv: os.Getenv}
}

func (t *Tools) roots() []string {
	var roots []string
	for _, root := range []string{t.SDKRoot, t.Getenv("ANDROID_SDK_ROOT"), t.Getenv("ANDROID_HOME")} {
		if root != "" {
			roots = append(roots, root)
		}
	}
	return roots
}

// Path returns the executable for tool, or the bare platform file name when
// nothing is found so the OS reports a clear "not found" on execution.
func (t *Tools) Path(tool string) string {
	name := executableName(tool)
	for _, root := range t.roots() {
		for _, sub := range sdkSubdirs[tool] {
			candidate := filepath.Join(root, sub, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	if path, err := t.LookPath(name); err == nil {
		return path
	}
	return name
}
