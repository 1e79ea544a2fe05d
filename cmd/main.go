package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	acceptor "github.com/infra-ci/integ-acceptor"
	"github.com/infra-ci/integ-acceptor/exitcodes"
	"github.com/infra-ci/integ-acceptor/flags"
	"github.com/infra-ci/integ-acceptor/logging"
	"github.com/infra-ci/integ-acceptor/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	log := logging.New("integ-acceptor", os.Getenv("INTEG_ACCEPTOR_LOG_LEVEL"), os.Getenv("CI") != "")

	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "integ-acceptor"
	app.Usage = "Integration environment acceptance runner"
	app.Description = "integ-acceptor brings up a named dependency environment, runs its test command with a bounded retry budget, guarantees teardown, and collects run artifacts"
	app.ArgsUsage = "<integration>"
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		return run(ctx, log)
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if acceptor.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if acceptor.IsTestFailureError(err) {
				var testErr *acceptor.TestFailureError
				errors.As(err, &testErr)
				cli.HandleExitCoder(cli.Exit(err.Error(), testErr.ExitCode))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start telemetry
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to set up open telemetry")
	} else {
		defer otelShutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start healthz and metrics servers
	svc := service.New(log)
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("application failed")
		os.Exit(exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context, log zerolog.Logger) error {
	if ctx.Args().Len() > 1 {
		return acceptor.NewRuntimeError(fmt.Errorf("expected a single integration name, got %d arguments", ctx.Args().Len()))
	}
	integration := ctx.Args().First()

	cfg, err := acceptor.NewConfig(ctx, log, ctx.String(flags.Config.Name), integration)
	if err != nil {
		return acceptor.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	a, err := acceptor.New(cfg)
	if err != nil {
		return acceptor.NewRuntimeError(fmt.Errorf("failed to create acceptor: %w", err))
	}
	log.Info().Str("run_id", a.RunID()).Msg("starting integration run")

	results, code := a.Run(ctx.Context)
	if code == exitcodes.Success {
		return nil
	}

	var failed []string
	for _, result := range results {
		if result.ExitCode != 0 {
			failed = append(failed, result.Summary())
		}
	}
	if len(failed) == 0 {
		return acceptor.NewRuntimeError(errors.New("run aborted before any integration completed"))
	}
	if code == exitcodes.RuntimeErr {
		return acceptor.NewRuntimeError(errors.New(strings.Join(failed, "; ")))
	}
	return acceptor.NewTestFailureError(strings.Join(failed, "; "), code)
}
