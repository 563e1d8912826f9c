package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "keystone", cmd.Use)
	assert.Contains(t, cmd.Long, "resumable")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"deploy", "plan", "status", "wipe", "unlock", "networks", "validate", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "keystone.yaml", configFlag.DefValue)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestNetworkFlagRequired(t *testing.T) {
	for _, name := range []string{"deploy", "status", "wipe", "unlock"} {
		t.Run(name, func(t *testing.T) {
			cmd := NewRootCommand()
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			flag := sub.Flags().Lookup("network")
			require.NotNil(t, flag)
			assert.Equal(t, "n", flag.Shorthand)
			assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
		})
	}
}

func TestPlanNetworkFlagOptional(t *testing.T) {
	cmd := NewRootCommand()
	planCmd, _, err := cmd.Find([]string{"plan"})
	require.NoError(t, err)

	flag := planCmd.Flags().Lookup("network")
	require.NotNil(t, flag)
	assert.Empty(t, flag.Annotations)
}

func TestDeployMissingNetworkFlag(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("deploy", "Market")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "network")
	assert.Zero(t, env.dials)
}

func TestFormatValidationIntegration(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("--format", "invalid", "networks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
