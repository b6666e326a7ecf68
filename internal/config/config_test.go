package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferlab/bqldb/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, cfg.WizardMode)
	assert.False(t, cfg.DisableVersionCheck)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvironmentToggles(t *testing.T) {
	t.Setenv("BQLDB_WIZARD_MODE", "true")
	t.Setenv("BQLDB_DISABLE_VERSION_CHECK", "true")
	t.Setenv("BQLDB_LOG_LEVEL", "debug")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.True(t, cfg.WizardMode)
	assert.True(t, cfg.DisableVersionCheck)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFileLayerAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bqldb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nwizard_mode: true\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.WizardMode)

	// Environment wins over the file.
	t.Setenv("BQLDB_LOG_LEVEL", "error")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
