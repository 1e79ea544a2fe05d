package proc

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-ci/integ-acceptor/types"
)

func newTestRunner() *Runner {
	return NewRunner(zerolog.Nop())
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), types.Command{
		Bin:  "sh",
		Args: []string{"-c", "echo hello; echo oops >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, "oops")
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestRunZeroExit(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), types.Command{
		Bin:  "sh",
		Args: []string{"-c", "true"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunSpawnFailure(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), types.Command{
		Bin: "definitely-not-a-real-binary-xyz",
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsSpawnFailure(err))
	assert.False(t, IsTimeout(err))
}

func TestRunEmptyCommand(t *testing.T) {
	r := newTestRunner()

	_, err := r.Run(context.Background(), types.Command{})
	require.Error(t, err)
	assert.True(t, IsSpawnFailure(err))
}

func TestRunTimeout(t *testing.T) {
	r := newTestRunner()

	start := time.Now()
	res, err := r.Run(context.Background(), types.Command{
		Bin:     "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: types.Duration(100 * time.Millisecond),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsSpawnFailure(err))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunWorkingDirectory(t *testing.T) {
	r := newTestRunner()
	dir := t.TempDir()

	res, err := r.Run(context.Background(), types.Command{
		Bin: "pwd",
		Dir: dir,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Output, dir)
}

func TestRunEnvOverrides(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), types.Command{
		Bin:  "sh",
		Args: []string{"-c", "echo $INTEG_TEST_VALUE"},
		Env:  map[string]string{"INTEG_TEST_VALUE": "present"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "present")
}

func TestRunCancelledContext(t *testing.T) {
	r := newTestRunner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, types.Command{
		Bin:  "sh",
		Args: []string{"-c", "sleep 30"},
	})
	// A cancelled parent context surfaces as the context's error, not as a
	// timeout and not as a result carrying the killed process's -1 code.
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
	assert.Nil(t, res)
}

func TestRunCancelledMidCommand(t *testing.T) {
	r := newTestRunner()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx, types.Command{
		Bin:  "sh",
		Args: []string{"-c", "sleep 30"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}
