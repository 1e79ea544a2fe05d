// Package proc executes external commands with captured output, optional
// timeouts and exit-code classification. It is the only place in the
// codebase that spawns OS processes.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/infra-ci/integ-acceptor/types"
)

// Result holds the outcome of a completed invocation. A non-zero ExitCode
// is a successful invocation carrying a failing result; spawn failures and
// timeouts are returned as errors instead.
type Result struct {
	ExitCode int
	Output   string // combined stdout+stderr, chronological best-effort
	Duration time.Duration
}

// SpawnError indicates the command never ran: executable not found,
// permission denied, bad working directory.
type SpawnError struct {
	Bin string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Bin, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError indicates the command exceeded its configured timeout and
// was forcibly terminated.
type TimeoutError struct {
	Bin     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Bin, e.Timeout)
}

// Runner executes commands. It holds no mutable state; a single Runner may
// be shared across goroutines.
type Runner struct {
	log zerolog.Logger
}

// NewRunner creates a Runner that logs through the given logger.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// Run executes cmd and blocks until it exits, the context is cancelled, or
// the command's timeout elapses. A cancelled context is returned as the
// context's error rather than an exit code. Environment overrides are
// appended to the inherited environment so credentials and CI context pass
// through opaquely.
func (r *Runner) Run(ctx context.Context, cmd types.Command) (*Result, error) {
	if cmd.Empty() {
		return nil, &SpawnError{Bin: cmd.Bin, Err: errors.New("no binary configured")}
	}

	timeout := cmd.Timeout.Std()
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Bin, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = buildEnv(cmd.Env)
	// Leave a short grace window between context cancellation and the
	// process being killed so children can flush output.
	c.WaitDelay = 5 * time.Second

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	r.log.Debug().
		Str("bin", cmd.Bin).
		Strs("args", cmd.Args).
		Str("dir", cmd.Dir).
		Dur("timeout", timeout).
		Msg("running command")

	start := time.Now()
	runErr := c.Run()
	duration := time.Since(start)

	result := &Result{
		Output:   out.String(),
		Duration: duration,
	}

	if runErr == nil {
		return result, nil
	}

	// Timeout takes precedence: CommandContext reports a killed process as
	// an ExitError, so consult the run context first.
	if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		r.log.Warn().Str("bin", cmd.Bin).Dur("timeout", timeout).Msg("command timed out")
		return nil, &TimeoutError{Bin: cmd.Bin, Timeout: timeout}
	}

	// A cancelled caller context also kills the process, which then reports
	// exit code -1. Surface the cancellation instead of the bogus code.
	if ctx.Err() != nil {
		r.log.Warn().Str("bin", cmd.Bin).Msg("command interrupted by cancellation")
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, &SpawnError{Bin: cmd.Bin, Err: runErr}
}

func buildEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil // inherit as-is
	}
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return err != nil && errors.As(err, &timeoutErr)
}

// IsSpawnFailure reports whether err is or wraps a SpawnError.
func IsSpawnFailure(err error) bool {
	var spawnErr *SpawnError
	return err != nil && errors.As(err, &spawnErr)
}
