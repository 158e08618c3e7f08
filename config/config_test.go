package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/journey-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "journey.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Reconciler.Enabled)
	assert.Equal(t, time.Hour, cfg.Reconciler.Interval)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 3000
db:
  path: ":memory:"
reconciler:
  enabled: false
  interval: 30m
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.False(t, cfg.Reconciler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Reconciler.Interval)
	assert.Equal(t, "info", cfg.Log.Level, "untouched sections keep their defaults")
}

func TestLoad_RejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
