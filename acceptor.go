package acceptor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/infra-ci/integ-acceptor/collector"
	"github.com/infra-ci/integ-acceptor/env"
	"github.com/infra-ci/integ-acceptor/exitcodes"
	"github.com/infra-ci/integ-acceptor/metrics"
	"github.com/infra-ci/integ-acceptor/proc"
	"github.com/infra-ci/integ-acceptor/registry"
	"github.com/infra-ci/integ-acceptor/runner"
	"github.com/infra-ci/integ-acceptor/types"
)

// RunState names the orchestrator's phases. Transitions are strictly
// Idle → Starting → Testing → Stopping → Done, except that Testing is
// skipped when the environment fails to start. Stopping is reached on
// every path out of Starting and Testing, including cancellation.
type RunState string

const (
	StateIdle     RunState = "idle"
	StateStarting RunState = "starting"
	StateTesting  RunState = "testing"
	StateStopping RunState = "stopping"
	StateDone     RunState = "done"
)

// EnvController starts and stops an integration's environment.
type EnvController interface {
	Start(ctx context.Context, integ *types.Integration) error
	Stop(ctx context.Context, integ *types.Integration) error
}

// TestExecutor runs the test command with a bounded retry budget.
type TestExecutor interface {
	Run(ctx context.Context, integ *types.Integration, retryBudget int) []types.Attempt
}

// ResultCollector persists and uploads a finished run's artifacts.
type ResultCollector interface {
	Collect(ctx context.Context, result *types.RunResult) error
}

// Acceptor drives integration runs: one per named integration, or all of
// them concurrently. Each run owns its environment exclusively.
type Acceptor struct {
	config    *Config
	registry  *registry.Registry
	env       EnvController
	executor  TestExecutor
	collector ResultCollector
	tracer    trace.Tracer
	runID     string
}

// New wires up the registry, process runner, controller, executor and
// collector for the given configuration.
func New(config *Config) (*Acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	reg, err := registry.NewRegistry(registry.Config{
		ConfigFile:     config.ConfigFile,
		DefaultRetries: config.Retries,
		DefaultSettle:  config.Settle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	procRunner := proc.NewRunner(config.Log)
	coll, err := collector.New(config.ResultsDir, config.UploadURL, config.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	return &Acceptor{
		config:    config,
		registry:  reg,
		env:       env.NewController(procRunner, config.Log),
		executor:  runner.NewExecutor(procRunner, config.Log),
		collector: coll,
		tracer:    otel.Tracer("integ-acceptor"),
		runID:     uuid.New().String(),
	}, nil
}

// RunID returns the identifier shared by all runs of this invocation.
func (a *Acceptor) RunID() string { return a.runID }

// Run executes the configured integration(s) and returns all results plus
// the process exit code (the aggregate exit code of the single run, or the
// first non-zero aggregate across runs in run-all mode).
func (a *Acceptor) Run(ctx context.Context) ([]*types.RunResult, int) {
	if err := a.config.CheckCIGate(); err != nil {
		a.config.Log.Error().Err(err).Msg("CI gate check failed")
		return nil, exitcodes.RuntimeErr
	}

	var integrations []*types.Integration
	if a.config.RunAll {
		integrations = a.registry.All()
	} else {
		integ, err := a.registry.Get(a.config.Integration)
		if err != nil {
			a.config.Log.Error().Err(err).Msg("integration lookup failed")
			return nil, exitcodes.RuntimeErr
		}
		integrations = []*types.Integration{integ}
	}

	results := make([]*types.RunResult, len(integrations))
	g, gctx := errgroup.WithContext(ctx)
	for i, integ := range integrations {
		i, integ := i, integ
		g.Go(func() error {
			results[i] = a.runOne(gctx, integ)
			return nil
		})
	}
	_ = g.Wait()

	exitCode := exitcodes.Success
	for _, result := range results {
		a.config.Log.Info().Msg(result.Summary())
		if exitCode == exitcodes.Success && result.ExitCode != 0 {
			exitCode = result.ExitCode
		}
	}
	printResultsTable(a.runID, results)

	return results, exitCode
}

// runOne drives the full state machine for a single integration. It always
// returns a RunResult; all failure modes are captured in it rather than as
// an error, so the caller has exactly one aggregate outcome per run.
func (a *Acceptor) runOne(ctx context.Context, integ *types.Integration) *types.RunResult {
	if a.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RunTimeout)
		defer cancel()
	}

	ctx, span := a.tracer.Start(ctx, "run")
	defer span.End()

	result := &types.RunResult{
		RunID:       a.runID,
		Integration: integ.Name,
		StartedAt:   time.Now(),
	}

	state := StateIdle
	advance := func(next RunState) {
		a.config.Log.Debug().
			Str("integration", integ.Name).
			Str("from", string(state)).
			Str("to", string(next)).
			Msg("state transition")
		state = next
	}

	var startErr, stopErr error
	var attempts []types.Attempt

	// Teardown is bound with defer so Stopping is reached on every path
	// out of Starting and Testing, cancellation and panics included.
	func() {
		defer func() {
			advance(StateStopping)
			_, stopSpan := a.tracer.Start(ctx, "env.stop")
			stopErr = a.env.Stop(ctx, integ)
			stopSpan.End()
		}()

		advance(StateStarting)
		_, startSpan := a.tracer.Start(ctx, "env.start")
		startErr = a.env.Start(ctx, integ)
		startSpan.End()
		if startErr != nil {
			return
		}

		advance(StateTesting)
		a.settle(ctx, integ)
		testCtx, testSpan := a.tracer.Start(ctx, "test")
		attempts = a.executor.Run(testCtx, integ, integ.RetryBudget)
		testSpan.End()
	}()

	advance(StateDone)
	a.finalize(result, attempts, startErr, stopErr)

	metrics.RecordRun(integ.Name, string(result.Status), result.Duration)
	if err := a.collector.Collect(ctx, result); err != nil {
		// Artifact persistence problems don't change the run outcome.
		metrics.RecordErrorDetails("artifact collection failed", err)
		a.config.Log.Warn().Err(err).
			Str("integration", integ.Name).
			Msg("failed to collect run artifacts")
	}

	return result
}

// finalize freezes the RunResult: status precedence is start failure, then
// the test outcome; stop failure is advisory unless nothing else decided
// the run.
func (a *Acceptor) finalize(result *types.RunResult, attempts []types.Attempt, startErr, stopErr error) {
	result.Attempts = attempts
	result.Duration = time.Since(result.StartedAt)
	if startErr != nil {
		result.StartError = startErr.Error()
	}
	if stopErr != nil {
		result.StopError = stopErr.Error()
	}

	switch {
	case startErr != nil:
		result.Status = types.RunStatusStartFailed
		result.ExitCode = exitcodes.RuntimeErr
	case len(attempts) == 0:
		// Start succeeded but the run was cancelled before any attempt.
		if stopErr != nil {
			result.Status = types.RunStatusStopFailed
		} else {
			result.Status = types.RunStatusFailed
		}
		result.ExitCode = exitcodes.RuntimeErr
	case attempts[len(attempts)-1].Passed():
		result.Status = types.RunStatusSuccess
		result.ExitCode = exitcodes.Success
	default:
		result.Status = types.RunStatusFailed
		result.ExitCode = attempts[len(attempts)-1].ExitCode
	}
}

// settle waits the integration's post-start settle delay so freshly
// started services (brokers, clusters) can become ready before the first
// attempt. Cancellation cuts the wait short.
func (a *Acceptor) settle(ctx context.Context, integ *types.Integration) {
	delay := integ.Settle.Std()
	if delay <= 0 {
		return
	}
	a.config.Log.Info().
		Str("integration", integ.Name).
		Dur("settle", delay).
		Msg("waiting for environment to settle")
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
