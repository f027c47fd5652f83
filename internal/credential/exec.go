package credential

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"missioncontrol/internal/errors"
)

// CommandResult is the captured outcome of one external command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	// Run executes name with args. A non-zero exit is reported as an error
	// wrapping errors.ErrCommandFailed, with the captured output still returned.
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// DefaultCommandTimeout bounds commands run by the default ExecRunner.
const DefaultCommandTimeout = 15 * time.Second

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct {
	// Timeout bounds each command; zero means the caller's context only.
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		if msg == "" {
			msg = exitErr.Error()
		}
		return res, errors.Wrapf(errors.ErrCommandFailed, "%s: %s", name, msg)
	}
	res.ExitCode = -1
	return res, errors.Wrapf(err, "run %s", name)
}
