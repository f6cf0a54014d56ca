package android

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	input string
	name  string
	args  []string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	respond func(c call) (*Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, input, name string, args ...string) (*Result, error) {
	c := call{input: input, name: name, args: args}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.respond == nil {
		return &Result{}, nil
	}
	return f.respond(c)
}

func (f *fakeRunner) Start(name string, args []string, out io.Writer) (*Process, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	return &Process{}, nil
}

func (c call) line() string {
	base := filepath.Base(c.name)
	return strings.TrimSuffix(base, filepath.Ext(base)) + " " + strings.Join(c.args, " ")
}

func pathTools() *Tools {
	return &Tools{
		LookPath: func(file string) (string, error) { return "", errors.New("not found") },
		Getenv:   func(string) string { return "" },
	}
}

func TestEnsureAVDCreatesWhenMissing(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		if c.args[0] == "-list-avds" {
			return &Result{Stdout: "INFO    | Storing crashdata\nPixel_7\nother\n"}, nil
		}
		return &Result{}, nil
	}}
	emu := NewEmulator(runner, pathTools())

	created, err := emu.EnsureAVD(context.Background(), "droidup", "system-images;android-30;google_apis;x86_64")
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, "avdmanager create avd -n droidup -k system-images;android-30;google_apis;x86_64", runner.calls[1].line())
	assert.Equal(t, "no\n", runner.calls[1].input)
}

func TestEnsureAVDSkipsExisting(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "droidup\n"}, nil
	}}
	created, err := NewEmulator(runner, pathTools()).EnsureAVD(context.Background(), "droidup", "img")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, runner.calls, 1)
}

func TestEnsureAVDReportsCreateFailure(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		if c.args[0] == "create" {
			return &Result{Stderr: "Package path is not valid"}, errors.New("avdmanager exited with code 1: Package path is not valid")
		}
		return &Result{}, nil
	}}
	_, err := NewEmulator(runner, pathTools()).EnsureAVD(context.Background(), "droidup", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Package path is not valid")
}

func TestStartArgs(t *testing.T) {
	runner := &fakeRunner{}
	_, err := NewEmulator(runner, pathTools()).Start("droidup", StartOptions{Port: 5556, NoAudio: true}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "emulator -avd droidup -port 5556 -no-audio", runner.calls[0].line())
	assert.Equal(t, "emulator-5556", Serial(5556))
}

func TestWaitForBoot(t *testing.T) {
	polls := 0
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		if c.args[len(c.args)-1] == "sys.boot_completed" {
			polls++
			if polls < 3 {
				return &Result{Stdout: "\n"}, nil
			}
			return &Result{Stdout: "1\n"}, nil
		}
		return &Result{}, nil
	}}
	emu := NewEmulator(runner, pathTools())
	emu.PollInterval = time.Millisecond

	require.NoError(t, emu.WaitForBoot(context.Background(), "emulator-5554", time.Second))
	assert.Equal(t, 3, polls)
	assert.Equal(t, "adb -s emulator-5554 wait-for-device", runner.calls[0].line())
}

func TestWaitForBootTimesOut(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "0"}, nil
	}}
	emu := NewEmulator(runner, pathTools())
	emu.PollInterval = time.Millisecond

	err := emu.WaitForBoot(context.Background(), "emulator-5554", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrBootTimeout)
}

func TestADBInstall(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "Performing Streamed Install\nSuccess\n"}, nil
	}}
	out, err := NewADB(runner, pathTools()).Install(context.Background(), "emulator-5554", "game.apk")
	require.NoError(t, err)
	assert.Contains(t, out, "Success")
	assert.Equal(t, "adb -s emulator-5554 install -r game.apk", runner.calls[0].line())

	failing := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "Failure [INSTALL_FAILED_NO_MATCHING_ABIS]\n"}, nil
	}}
	_, err = NewADB(failing, pathTools()).Install(context.Background(), "", "game.apk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSTALL_FAILED_NO_MATCHING_ABIS")
	assert.Equal(t, "adb install -r game.apk", failing.calls[0].line())
}

func TestADBStartActivity(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "Starting: Intent { cmp=org.jboss.aerogear/.AeroGearMain }\n"}, nil
	}}
	adb := NewADB(runner, pathTools())
	_, err := adb.StartActivity(context.Background(), "", "org.jboss.aerogear", "AeroGearMain")
	require.NoError(t, err)
	assert.Equal(t, "adb shell am start -n org.jboss.aerogear/.AeroGearMain", runner.calls[0].line())

	_, err = adb.StartActivity(context.Background(), "", "com.mojang.minecraftpe", "")
	require.NoError(t, err)
	assert.Equal(t, "adb shell monkey -p com.mojang.minecraftpe -c android.intent.category.LAUNCHER 1", runner.calls[1].line())

	failing := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "Error: Activity class {x/.Y} does not exist.\n"}, nil
	}}
	_, err = NewADB(failing, pathTools()).StartActivity(context.Background(), "", "x", "Y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestADBDevices(t *testing.T) {
	runner := &fakeRunner{respond: func(c call) (*Result, error) {
		return &Result{Stdout: "List of devices attached\nemulator-5554\tdevice\nemulator-5556\toffline\n\n"}, nil
	}}
	serials, err := NewADB(runner, pathTools()).Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"emulator-5554"}, serials)
}

func TestComponent(t *testing.T) {
	assert.Equal(t, "a.b/.Main", Component("a.b", "Main"))
	assert.Equal(t, "a.b/.Main", Component("a.b", ".Main"))
	assert.Equal(t, "a.b/a.b.Main", Component("a.b", "a.b.Main"))
}

func TestToolsPathPrefersSDK(t *testing.T) {
	sdk := t.TempDir()
	adbDir := filepath.Join(sdk, "platform-tools")
	require.NoError(t, os.MkdirAll(adbDir, 0755))
	adbPath := filepath.Join(adbDir, executableName(ToolADB))
	require.NoError(t, os.WriteFile(adbPath, nil, 0755))

	tools := pathTools()
	tools.Getenv = func(key string) string {
		if key == "ANDROID_HOME" {
			return sdk
		}
		return ""
	}
	assert.Equal(t, adbPath, tools.Path(ToolADB))
	assert.Equal(t, executableName(ToolEmulator), tools.Path(ToolEmulator))

	tools.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	assert.Equal(t, "/usr/bin/"+executableName(ToolAVDManager), tools.Path(ToolAVDManager))
}

func TestResultMessage(t *testing.T) {
	assert.Equal(t, "bad", (&Result{Stdout: "out", Stderr: " bad\n"}).Message())
	assert.Equal(t, "out", (&Result{Stdout: "out\n"}).Message())
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("DROIDUP_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("DROIDUP_HELPER_FAIL") == "1" {
		os.Stderr.WriteString("helper failed\n")
		os.Exit(3)
	}
	data, _ := io.ReadAll(os.Stdin)
	os.Stdout.WriteString("stdin:" + string(data))
	os.Exit(0)
}

func TestExecRunner(t *testing.T) {
	t.Setenv("DROIDUP_HELPER_PROCESS", "1")
	result, err := ExecRunner{}.Run(context.Background(), "no\n", os.Args[0], "-test.run=TestHelperProcess")
	require.NoError(t, err)
	assert.Equal(t, "stdin:no\n", result.Stdout)

	t.Setenv("DROIDUP_HELPER_FAIL", "1")
	result, err = ExecRunner{}.Run(context.Background(), "", os.Args[0], "-test.run=TestHelperProcess")
	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, err.Error(), "helper failed")

	_, err = ExecRunner{}.Run(context.Background(), "", filepath.Join(t.TempDir(), "missing-tool"))
	assert.Error(t, err)
}
