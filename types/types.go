// Package types defines the shared data model for integration runs.
package types

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RunStatus is the terminal status of an integration run.
type RunStatus string

const (
	RunStatusSuccess     RunStatus = "success"
	RunStatusFailed      RunStatus = "failed"
	RunStatusStartFailed RunStatus = "env-start-failed"
	RunStatusStopFailed  RunStatus = "env-stop-failed"
)

// Duration wraps time.Duration so config files can use human-readable
// forms like "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or a bare integer
// (interpreted as seconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// MarshalJSON renders the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d))), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Command describes one external invocation owned by an integration.
// Only the exit code and captured output are interpreted by the runner;
// everything else about the command is opaque.
type Command struct {
	Bin     string            `yaml:"bin" json:"bin"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Empty reports whether the command has no binary configured.
func (c Command) Empty() bool {
	return c.Bin == ""
}

// String renders the command for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Bin
	}
	return fmt.Sprintf("%s %v", c.Bin, c.Args)
}

// Integration describes a named dependency environment: the commands that
// bring it up, tear it down and exercise it, plus the resolved retry budget
// and settle delay. Descriptors are resolved by the registry and immutable
// afterwards; a zero RetryBudget is meaningful and means exactly one
// attempt.
type Integration struct {
	Name        string   `json:"name"`
	Start       Command  `json:"start"`
	Stop        Command  `json:"stop"`
	Test        Command  `json:"test"`
	RetryBudget int      `json:"retries"`
	Settle      Duration `json:"settle,omitempty"`
}

// Attempt records a single invocation of an integration's test command.
// Attempts are created by the test executor and never mutated afterwards,
// except for LogRef which the collector fills in once output is persisted.
type Attempt struct {
	Number   int           `json:"number"` // 1-based
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	LogRef   string        `json:"log_ref,omitempty"`

	// Output holds the captured combined output. It is written to disk by
	// the collector rather than serialized into the result record.
	Output string `json:"-"`
}

// Passed reports whether the attempt's test command exited zero.
func (a Attempt) Passed() bool {
	return a.ExitCode == 0
}

// RunResult is the aggregate outcome of one integration run. It is created
// by the orchestrator when the run reaches its terminal state and is
// immutable thereafter.
type RunResult struct {
	RunID       string        `json:"run_id"`
	Integration string        `json:"integration"`
	Status      RunStatus     `json:"status"`
	Attempts    []Attempt     `json:"attempts"`
	ExitCode    int           `json:"exit_code"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`

	// StartError and StopError carry failure detail for the environment
	// commands. StopError is advisory: it never changes ExitCode once the
	// test outcome decided it.
	StartError string `json:"start_error,omitempty"`
	StopError  string `json:"stop_error,omitempty"`
}

// Summary renders the one-line per-run outcome.
func (r *RunResult) Summary() string {
	return fmt.Sprintf("%s: %s, attempts=%d, exitCode=%d",
		r.Integration, r.Status, len(r.Attempts), r.ExitCode)
}

// LastAttempt returns the final attempt, or nil if none were made.
func (r *RunResult) LastAttempt() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}
