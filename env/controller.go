// Package env starts and stops named integration environments.
package env

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/infra-ci/integ-acceptor/metrics"
	"github.com/infra-ci/integ-acceptor/proc"
	"github.com/infra-ci/integ-acceptor/types"
)

// Controller brings a single integration's dependency environment up and
// down. The underlying start/stop commands are expected to be idempotent
// (compose-style tooling absorbs redundant invocations); the controller
// additionally guards against stopping an environment it never started
// being treated as an error.
type Controller struct {
	runner *proc.Runner
	log    zerolog.Logger
}

// NewController creates a Controller. The proc runner is shared with the
// rest of the run pipeline.
func NewController(runner *proc.Runner, log zerolog.Logger) *Controller {
	return &Controller{runner: runner, log: log}
}

// Start invokes the integration's start command. Any failure to bring the
// environment up, including spawn failures and timeouts, is fatal to the
// run: the caller must not proceed to testing.
func (c *Controller) Start(ctx context.Context, integ *types.Integration) error {
	c.log.Info().Str("integration", integ.Name).Msg("starting environment")

	res, err := c.runner.Run(ctx, integ.Start)
	if err != nil {
		metrics.RecordEnvFailure(integ.Name, "start")
		return fmt.Errorf("environment start for %q: %w", integ.Name, err)
	}
	if res.ExitCode != 0 {
		metrics.RecordEnvFailure(integ.Name, "start")
		c.log.Error().
			Str("integration", integ.Name).
			Int("exit_code", res.ExitCode).
			Str("output", tail(res.Output, 2048)).
			Msg("environment start failed")
		return fmt.Errorf("environment start for %q exited %d", integ.Name, res.ExitCode)
	}

	c.log.Info().
		Str("integration", integ.Name).
		Dur("duration", res.Duration).
		Msg("environment started")
	return nil
}

// Stop invokes the integration's stop command. It is best-effort and safe
// to call even when Start failed partway or never ran; a stop failure is
// returned so the caller can record it, but callers treat it as advisory.
// Stop ignores cancellation of the run context so teardown still happens
// on interrupted runs.
func (c *Controller) Stop(ctx context.Context, integ *types.Integration) error {
	c.log.Info().Str("integration", integ.Name).Msg("stopping environment")

	// Teardown must proceed even when the run was cancelled.
	stopCtx := context.WithoutCancel(ctx)

	res, err := c.runner.Run(stopCtx, integ.Stop)
	if err != nil {
		metrics.RecordEnvFailure(integ.Name, "stop")
		return fmt.Errorf("environment stop for %q: %w", integ.Name, err)
	}
	if res.ExitCode != 0 {
		metrics.RecordEnvFailure(integ.Name, "stop")
		c.log.Warn().
			Str("integration", integ.Name).
			Int("exit_code", res.ExitCode).
			Str("output", tail(res.Output, 2048)).
			Msg("environment stop failed")
		return fmt.Errorf("environment stop for %q exited %d", integ.Name, res.ExitCode)
	}

	c.log.Info().
		Str("integration", integ.Name).
		Dur("duration", res.Duration).
		Msg("environment stopped")
	return nil
}

// tail returns the last max bytes of s for log context.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
