// iwtui/goiwd/executor.go
package goiwd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultCommandTimeout = 10 * time.Second
	waitDelay             = 500 * time.Millisecond
)

// CommandResult is the uniform result of running an external command.
// OK is true only when the process ran and exited with status 0.
type CommandResult struct {
	OK     bool
	Output string
}

// Runner runs a command to completion. Implementations never return errors;
// every failure ends up in a CommandResult with OK=false.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin *string) CommandResult
}

// ExecRunner runs commands through os/exec with a fixed upper bound on wall-clock time.
type ExecRunner struct {
	Timeout time.Duration
	Log     Logger
}

func NewExecRunner(timeout time.Duration, logger Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &ExecRunner{Timeout: timeout, Log: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args []string, stdin *string) CommandResult {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	log := r.Log
	if log == nil {
		log = noopLogger{}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	commandLine := strings.TrimSpace(name + " " + strings.Join(args, " "))
	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Run past the deadline.
	cmd.WaitDelay = waitDelay
	if stdin != nil {
		cmd.Stdin = strings.NewReader(*stdin + "\n")
	}
	log.Debugf("Executing command: %s", commandLine)

	err := cmd.Run()
	out := stdout.String()
	if err == nil {
		return CommandResult{OK: true, Output: out}
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		log.Warnf("Command '%s' timed out after %s", commandLine, timeout)
		return CommandResult{Output: fmt.Sprintf("command '%s' timed out after %s", commandLine, timeout)}
	case ctx.Err() != nil:
		log.Warnf("Command '%s' cancelled: %v", commandLine, ctx.Err())
		return CommandResult{Output: fmt.Sprintf("command '%s' cancelled: %v", commandLine, ctx.Err())}
	}

	if _, isExit := err.(*exec.ExitError); !isExit {
		// Never started: binary missing, permission denied, I/O setup failure.
		log.Errorf("Command '%s' failed to run: %v", commandLine, err)
		return CommandResult{Output: err.Error()}
	}

	stderrStr := strings.TrimSpace(stderr.String())
	log.Warnf("Command '%s' failed: %v (stderr: %s)", commandLine, err, stderrStr)
	if strings.TrimSpace(out) == "" {
		if stderrStr != "" {
			out = stderrStr
		} else {
			out = err.Error()
		}
	}
	return CommandResult{Output: out}
}
