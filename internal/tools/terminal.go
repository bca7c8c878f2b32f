package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/logging"
)

// ErrExecStart reports that the target could not be started at all.
var ErrExecStart = errors.New("cannot start target")

const defaultTimeout = 30 * time.Second

// Runner executes a source file with an interpreter under a timeout.
type Runner struct {
	// Interpreter resolves the command line used for a file extension (".py").
	Interpreter func(ext string) []string
	Timeout     time.Duration
	Logger      *zap.Logger
}

// ExecResult carries the outcome of one run.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Success reports whether the run exited 0 within the timeout.
func (r ExecResult) Success() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Outcome labels the result as success, failure or timeout.
func (r ExecResult) Outcome() string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.ExitCode == 0:
		return "success"
	default:
		return "failure"
	}
}

// Combined joins stdout and stderr.
func (r ExecResult) Combined() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Run executes path with its directory as the working directory. A non-zero
// exit or timeout is reported through the result; the error is only set when
// the process could not be started or ctx was cancelled.
func (r *Runner) Run(ctx context.Context, path string) (ExecResult, error) {
	log := logging.OrNop(r.Logger)

	abs, err := filepath.Abs(path)
	if err != nil {
		return ExecResult{}, fmt.Errorf("%w: %v", ErrExecStart, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.Mode().IsRegular() {
		return ExecResult{}, fmt.Errorf("%w: %s is not a file", ErrExecStart, abs)
	}

	argv := r.command(abs)
	if len(argv) == 0 {
		return ExecResult{}, fmt.Errorf("%w: no interpreter for %s", ErrExecStart, abs)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], abs)...)
	cmd.Dir = filepath.Dir(abs)
	isolate(cmd)
	cmd.WaitDelay = 3 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Info("executing target", zap.Strings("argv", cmd.Args), zap.Duration("timeout", timeout))

	start := time.Now()
	err = cmd.Run()
	res := ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
		log.Warn("target timed out", zap.Duration("timeout", timeout))
	case errors.Is(ctx.Err(), context.Canceled):
		log.Warn("target interrupted")
		return res, fmt.Errorf("target interrupted: %w", ctx.Err())
	case err == nil:
		log.Info("target succeeded", zap.Duration("duration", res.Duration))
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		log.Warn("target failed", zap.Int("exit_code", res.ExitCode))
		log.Debug("target stderr", zap.String("stderr", truncate(res.Stderr, 500)))
	default:
		return res, fmt.Errorf("%w: %v", ErrExecStart, err)
	}
	return res, nil
}

func (r *Runner) command(path string) []string {
	if r.Interpreter == nil {
		return []string{"python3"}
	}
	return r.Interpreter(filepath.Ext(path))
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "... [truncated]"
}
