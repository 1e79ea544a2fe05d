package acceptor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/infra-ci/integ-acceptor/flags"
)

// runConfig runs NewConfig through a real cli app so flag parsing and
// defaults behave exactly as in production.
func runConfig(t *testing.T, integration string, args ...string) (*Config, error) {
	t.Helper()

	var cfg *Config
	var cfgErr error

	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = NewConfig(ctx, zerolog.Nop(), ctx.String(flags.Config.Name), integration)
		return nil
	}

	argv := append([]string{"integ-acceptor"}, args...)
	require.NoError(t, app.Run(argv))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := runConfig(t, "kafka", "--config", "integrations.yaml")
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Integration)
	assert.False(t, cfg.RunAll)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 30*time.Second, cfg.Settle)
	assert.Equal(t, time.Duration(0), cfg.RunTimeout)
	assert.NotEmpty(t, cfg.ConfigFile)
	assert.NotEmpty(t, cfg.ResultsDir)
}

func TestNewConfigOverrides(t *testing.T) {
	cfg, err := runConfig(t, "kafka",
		"--config", "integrations.yaml",
		"--retries", "5",
		"--settle", "1s",
		"--run-timeout", "10m",
		"--upload-url", "https://reports.example.com/upload",
		"--allow-local",
	)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, time.Second, cfg.Settle)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, "https://reports.example.com/upload", cfg.UploadURL)
	assert.True(t, cfg.AllowLocal)
}

func TestNewConfigRequiresIntegrationOrAll(t *testing.T) {
	_, err := runConfig(t, "", "--config", "integrations.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integration name is required")
}

func TestNewConfigRejectsIntegrationWithAll(t *testing.T) {
	_, err := runConfig(t, "kafka", "--config", "integrations.yaml", "--all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestNewConfigRejectsNegativeRetries(t *testing.T) {
	_, err := runConfig(t, "kafka", "--config", "integrations.yaml", "--retries=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestCheckCIGate(t *testing.T) {
	tests := []struct {
		name       string
		inCI       bool
		allowLocal bool
		wantErr    bool
	}{
		{"in CI", true, false, false},
		{"local allowed", false, true, false},
		{"local refused", false, false, true},
		{"both set", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{InCI: tt.inCI, AllowLocal: tt.allowLocal}
			err := cfg.CheckCIGate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
