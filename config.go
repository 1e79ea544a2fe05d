// Package acceptor orchestrates integration-test environment runs: it
// brings a named dependency environment up, drives the retry-bounded test
// executor against it, guarantees teardown on every exit path and collects
// the run's artifacts.
package acceptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/infra-ci/integ-acceptor/flags"
)

// ciEnvVars are the environment variables that mark a recognized CI
// context. Presence of any non-empty one satisfies the CI gate.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "CIRCLECI", "GITLAB_CI", "BUILDKITE"}

// Config holds the application configuration.
type Config struct {
	ConfigFile  string        // Path to the integrations config file
	Integration string        // Name of the integration to run; empty in run-all mode
	RunAll      bool          // Run every integration in the config
	Retries     int           // Default retry budget for integrations without one
	ResultsDir  string        // Directory for run artifacts
	UploadURL   string        // Optional result upload endpoint
	Settle      time.Duration // Default post-start settle delay
	RunTimeout  time.Duration // Optional wall-clock budget per run (0 = none)
	InCI        bool          // Whether a recognized CI context was detected
	AllowLocal  bool          // Permit runs outside CI
	Log         zerolog.Logger
}

// NewConfig creates a new Config from the cli context. The CI gate is
// resolved here, once, rather than read ambiently later.
func NewConfig(ctx *cli.Context, log zerolog.Logger, configFile, integration string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if configFile == "" {
		return nil, errors.New("integrations config file is required")
	}

	runAll := ctx.Bool(flags.All.Name)
	if integration == "" && !runAll {
		return nil, errors.New("an integration name is required unless --all is set")
	}
	if integration != "" && runAll {
		return nil, errors.New("an integration name and --all are mutually exclusive")
	}

	retries := ctx.Int(flags.Retries.Name)
	if retries < 0 {
		return nil, fmt.Errorf("retry budget must be non-negative, got %d", retries)
	}

	absConfigFile, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for config '%s': %w", configFile, err)
	}
	resultsDir, err := filepath.Abs(ctx.String(flags.ResultsDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for results dir: %w", err)
	}

	return &Config{
		ConfigFile:  absConfigFile,
		Integration: integration,
		RunAll:      runAll,
		Retries:     retries,
		ResultsDir:  resultsDir,
		UploadURL:   ctx.String(flags.UploadURL.Name),
		Settle:      ctx.Duration(flags.Settle.Name),
		RunTimeout:  ctx.Duration(flags.RunTimeout.Name),
		InCI:        detectCI(),
		AllowLocal:  ctx.Bool(flags.AllowLocal.Name),
		Log:         log,
	}, nil
}

// CheckCIGate returns an error when the run is not permitted in the
// current context. The tool refuses to run outside a recognized CI
// environment unless --allow-local is set, since start/stop commands
// manage real services.
func (c *Config) CheckCIGate() error {
	if c.InCI || c.AllowLocal {
		return nil
	}
	return errors.New("refusing to run outside a recognized CI environment; pass --allow-local to override")
}

func detectCI() bool {
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
