package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "INTEG_ACCEPTOR"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Config = &cli.StringFlag{
		Name:     "config",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("CONFIG"),
		Usage:    "Path to the integrations config file (eg. 'integrations.yaml')",
	}
	Retries = &cli.IntFlag{
		Name:    "retries",
		Value:   2,
		EnvVars: prefixEnvVars("RETRIES"),
		Usage:   "Default retry budget: extra test attempts after the first failure",
	}
	All = &cli.BoolFlag{
		Name:    "all",
		Value:   false,
		EnvVars: prefixEnvVars("ALL"),
		Usage:   "Run every integration in the config concurrently",
	}
	ResultsDir = &cli.StringFlag{
		Name:    "results-dir",
		Value:   "results",
		EnvVars: prefixEnvVars("RESULTS_DIR"),
		Usage:   "Directory to store run artifacts (attempt logs, result records)",
	}
	UploadURL = &cli.StringFlag{
		Name:    "upload-url",
		Value:   "",
		EnvVars: prefixEnvVars("UPLOAD_URL"),
		Usage:   "Optional HTTP endpoint to POST result records to",
	}
	Settle = &cli.DurationFlag{
		Name:    "settle",
		Value:   30 * time.Second,
		EnvVars: prefixEnvVars("SETTLE"),
		Usage:   "Default delay after environment start before the first test attempt",
	}
	RunTimeout = &cli.DurationFlag{
		Name:    "run-timeout",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_TIMEOUT"),
		Usage:   "Optional wall-clock budget for a whole run. 0 disables it.",
	}
	AllowLocal = &cli.BoolFlag{
		Name:    "allow-local",
		Value:   false,
		EnvVars: prefixEnvVars("ALLOW_LOCAL"),
		Usage:   "Allow running outside a recognized CI environment",
	}
)

var requiredFlags = []cli.Flag{
	Config,
}

var optionalFlags = []cli.Flag{
	Retries,
	All,
	ResultsDir,
	UploadURL,
	Settle,
	RunTimeout,
	AllowLocal,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
