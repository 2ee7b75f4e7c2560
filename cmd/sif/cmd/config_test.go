package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/sif/internal/config"
)

func TestConfigShow(t *testing.T) {
	t.Setenv("SIF_OUTPUT_TOP_K", "9")

	out, _, err := executeCommand(t, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 9, cfg.Output.TopK)
	assert.Equal(t, config.DefaultConfig().Retrieval, cfg.Retrieval)
}

func TestConfigShow_FlagOverridesLogLevel(t *testing.T) {
	out, _, err := executeCommand(t, "--log-level", "debug", "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sif.yaml")

	out, _, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, config.DefaultConfig().Output, cfg.Output)

	_, _, err = executeCommand(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigPath(t *testing.T) {
	out, _, err := executeCommand(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "Environment prefix: SIF")
	assert.Contains(t, out, "Configuration search paths:")
	assert.NotContains(t, out, "invalid")

	out, _, err = executeCommand(t, "--log-level", "loud", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is invalid")
}
