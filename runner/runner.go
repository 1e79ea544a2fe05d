// Package runner executes an integration's test command with a bounded
// retry budget.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/infra-ci/integ-acceptor/metrics"
	"github.com/infra-ci/integ-acceptor/proc"
	"github.com/infra-ci/integ-acceptor/types"
)

// ProcessRunner is the subset of proc.Runner the executor needs. Narrowed
// so tests can substitute a scripted fake.
type ProcessRunner interface {
	Run(ctx context.Context, cmd types.Command) (*proc.Result, error)
}

// Executor runs test commands against a started environment. Any non-zero
// exit is retryable up to the budget; the executor makes no attempt to
// classify transient vs. permanent failures since the underlying commands
// give no such signal.
type Executor struct {
	runner ProcessRunner
	log    zerolog.Logger
}

// NewExecutor creates an Executor backed by the given process runner.
func NewExecutor(runner ProcessRunner, log zerolog.Logger) *Executor {
	return &Executor{runner: runner, log: log}
}

// Run executes the integration's test command until it succeeds or the
// retry budget is exhausted. A budget of 0 means exactly one attempt.
// Spawn failures and timeouts count as failing attempts. The returned
// attempts are ordered chronologically and there is always at least one,
// unless the context was already cancelled on entry.
func (e *Executor) Run(ctx context.Context, integ *types.Integration, retryBudget int) []types.Attempt {
	if retryBudget < 0 {
		retryBudget = 0
	}

	attempts := make([]types.Attempt, 0, retryBudget+1)

	for number := 1; number <= retryBudget+1; number++ {
		if ctx.Err() != nil {
			e.log.Warn().
				Str("integration", integ.Name).
				Int("attempt", number).
				Msg("run cancelled, abandoning remaining attempts")
			break
		}

		attempt := e.runOnce(ctx, integ, number)
		attempts = append(attempts, attempt)
		metrics.RecordAttempt(integ.Name, attempt.Passed())

		if attempt.Passed() {
			e.log.Info().
				Str("integration", integ.Name).
				Int("attempt", number).
				Dur("duration", attempt.Duration).
				Msg("test attempt passed")
			break
		}

		remaining := retryBudget + 1 - number
		e.log.Warn().
			Str("integration", integ.Name).
			Int("attempt", number).
			Int("exit_code", attempt.ExitCode).
			Int("retries_remaining", remaining).
			Msg("test attempt failed")
	}

	return attempts
}

func (e *Executor) runOnce(ctx context.Context, integ *types.Integration, number int) types.Attempt {
	e.log.Info().
		Str("integration", integ.Name).
		Int("attempt", number).
		Str("command", integ.Test.String()).
		Msg("running test attempt")

	res, err := e.runner.Run(ctx, integ.Test)
	if err != nil {
		// A test command that never produced an exit code still consumes
		// an attempt. Timeouts are surfaced with a conventional code so
		// the aggregate exit code stays meaningful.
		code := exitCodeFor(err)
		return types.Attempt{
			Number:   number,
			ExitCode: code,
			Output:   fmt.Sprintf("attempt %d did not complete: %v\n", number, err),
		}
	}

	return types.Attempt{
		Number:   number,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
		Output:   res.Output,
	}
}

// exitCodeFor maps invocation-level failures onto exit codes: 124 for
// timeouts (matching coreutils timeout), 127 for spawn failures (matching
// shell command-not-found) and 130 for attempts cut short by run
// cancellation (matching shell interrupt).
func exitCodeFor(err error) int {
	switch {
	case proc.IsTimeout(err):
		return 124
	case proc.IsSpawnFailure(err):
		return 127
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return 130
	default:
		return 1
	}
}
