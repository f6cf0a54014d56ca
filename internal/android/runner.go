package android

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Message is the most useful human readable text of the result: stderr when
// present, stdout otherwise.
func (r *Result) Message() string {
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(r.Stdout)
}

type Runner interface {
	// Run executes a command to completion. input, when non-empty, is fed to stdin.
	// A non-zero exit is returned as an error along with the result.
	Run(ctx context.Context, input, name string, args ...string) (*Result, error)
	// Start launches a long running command that is not tied to any context.
	Start(name string, args []string, out io.Writer) (*Process, error)
}

// Process is a started command. The zero value stands for a process that
// was never spawned; its methods are no-ops.
type Process struct {
	cmd *exec.Cmd
}

func (p *Process) running() bool {
	return p.cmd != nil && p.cmd.Process != nil
}

func (p *Process) Pid() int {
	if !p.running() {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *Process) Wait() error {
	if !p.running() {
		return nil
	}
	return p.cmd.Wait()
}

func (p *Process) Kill() error {
	if !p.running() {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Release detaches the process so it keeps running after droidup exits.
func (p *Process) Release() error {
	if !p.running() {
		return nil
	}
	return p.cmd.Process.Release()
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, input, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}
	log.Debug().Str("op", "android/runner").Msgf("Executing command: %s", cmd.String())
	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if msg := result.Message(); msg != "" {
			return result, fmt.Errorf("%s exited with code %d: %s", name, result.ExitCode, msg)
		}
		return result, fmt.Errorf("%s exited with code %d", name, result.ExitCode)
	}
	result.ExitCode = -1
	return result, fmt.Errorf("error running %s: %v", name, err)
}

func (ExecRunner) Start(name string, args []string, out io.Writer) (*Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	log.Debug().Str("op", "android/runner").Msgf("Starting command: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting %s: %v", name, err)
	}
	return &Process{cmd: cmd}, nil
}
