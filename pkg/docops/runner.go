package docops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrExecutionTimeout is returned when a process exceeds its deadline
var ErrExecutionTimeout = errors.New("execution timed out")

// Command describes one external process invocation
type Command struct {
	Name       string
	Args       []string
	WorkingDir string
	Env        []string
	Timeout    time.Duration
}

// Result holds the outcome of a finished process
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner starts external processes
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs processes on the host with os/exec
type ExecRunner struct{}

// LookPath resolves name in PATH
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes cmd and waits for it to finish
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.WorkingDir != "" {
		c.Dir = cmd.WorkingDir
	}
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	result := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	// Check for timeout first
	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return result, ErrExecutionTimeout
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("%s exited with code %d", cmd.Name, result.ExitCode)
		}
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
	}

	return result, nil
}
