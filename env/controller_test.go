package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-ci/integ-acceptor/proc"
	"github.com/infra-ci/integ-acceptor/types"
)

func newTestController() *Controller {
	return NewController(proc.NewRunner(zerolog.Nop()), zerolog.Nop())
}

func shellIntegration(start, stop string) *types.Integration {
	return &types.Integration{
		Name:  "test-env",
		Start: types.Command{Bin: "sh", Args: []string{"-c", start}},
		Stop:  types.Command{Bin: "sh", Args: []string{"-c", stop}},
		Test:  types.Command{Bin: "true"},
	}
}

func TestStartSuccess(t *testing.T) {
	c := newTestController()

	err := c.Start(context.Background(), shellIntegration("true", "true"))
	require.NoError(t, err)
}

func TestStartFailure(t *testing.T) {
	c := newTestController()

	err := c.Start(context.Background(), shellIntegration("exit 1", "true"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 1")
}

func TestStartSpawnFailureIsFatal(t *testing.T) {
	c := newTestController()
	integ := shellIntegration("true", "true")
	integ.Start = types.Command{Bin: "definitely-not-a-real-binary-xyz"}

	err := c.Start(context.Background(), integ)
	require.Error(t, err)
	assert.True(t, proc.IsSpawnFailure(err))
}

func TestStopSuccess(t *testing.T) {
	c := newTestController()

	err := c.Stop(context.Background(), shellIntegration("true", "true"))
	require.NoError(t, err)
}

func TestStopFailureReturned(t *testing.T) {
	c := newTestController()

	err := c.Stop(context.Background(), shellIntegration("true", "exit 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 2")
}

// Stop must be idempotent: a second invocation behaves like the first.
func TestStopTwiceNoDistinctError(t *testing.T) {
	c := newTestController()
	integ := shellIntegration("true", "true")

	require.NoError(t, c.Stop(context.Background(), integ))
	require.NoError(t, c.Stop(context.Background(), integ))
}

// Teardown still runs when the surrounding run context was cancelled.
func TestStopRunsAfterCancellation(t *testing.T) {
	c := newTestController()
	marker := filepath.Join(t.TempDir(), "stopped")
	integ := shellIntegration("true", "touch "+marker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Stop(ctx, integ)
	require.NoError(t, err)

	_, statErr := os.Stat(marker)
	require.NoError(t, statErr, "stop command should have run despite cancellation")
}
