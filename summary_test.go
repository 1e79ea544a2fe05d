package acceptor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/infra-ci/integ-acceptor/types"
)

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(types.RunStatusSuccess))
	assert.Equal(t, "✗ fail", getResultString(types.RunStatusFailed))
	assert.Equal(t, "✗ env start", getResultString(types.RunStatusStartFailed))
	assert.Equal(t, "✗ env stop", getResultString(types.RunStatusStopFailed))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
}

func TestWarningFor(t *testing.T) {
	assert.Empty(t, warningFor(&types.RunResult{Status: types.RunStatusSuccess}))

	assert.Equal(t, "environment stop failed: compose down exited 1", warningFor(&types.RunResult{
		Status:    types.RunStatusSuccess,
		StopError: "compose down exited 1",
	}))

	assert.Equal(t, "no such service", warningFor(&types.RunResult{
		Status:     types.RunStatusStartFailed,
		StartError: "no such service",
	}))

	combined := warningFor(&types.RunResult{
		Status:     types.RunStatusStartFailed,
		StartError: "no such service",
		StopError:  "network busy",
	})
	assert.Contains(t, combined, "no such service")
	assert.Contains(t, combined, "network busy")
}

func TestPrintResultsTableDoesNotPanic(t *testing.T) {
	printResultsTable("run-1", []*types.RunResult{
		{Integration: "kafka", Status: types.RunStatusSuccess, Attempts: []types.Attempt{{Number: 1}}},
		{Integration: "elasticsearch", Status: types.RunStatusFailed, ExitCode: 137},
	})
}
