package flags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

// TestHasEnvVar asserts that every flag has a prefixed env var fallback.
func TestHasEnvVar(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlag, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "flag %q does not support env vars", flagName)
			envVars := envFlag.GetEnvVars()
			require.Len(t, envVars, 1, "flag %q must have exactly one env var", flagName)
			require.True(t, strings.HasPrefix(envVars[0], EnvVarPrefix+"_"),
				"flag %q env var %q must start with %s_", flagName, envVars[0], EnvVarPrefix)
		})
	}
}

func TestCheckRequired(t *testing.T) {
	app := cli.NewApp()
	app.Flags = Flags
	app.Action = func(ctx *cli.Context) error {
		return CheckRequired(ctx)
	}

	err := app.Run([]string{"integ-acceptor"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "config")

	err = app.Run([]string{"integ-acceptor", "--config", "integrations.yaml"})
	require.NoError(t, err)
}
