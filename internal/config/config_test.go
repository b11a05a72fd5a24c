package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Server.Address)
	assert.Equal(t, 7, cfg.Analysis.DefaultLookbackDays)
	assert.Equal(t, 8, cfg.Analysis.OverviewWorkers)
	assert.Equal(t, 20, cfg.Analysis.TopResults)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Clients.Core.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
clients:
  core:
    baseURL: "http://dlp-core:8080"
analysis:
  defaultLookbackDays: 14
  overviewWorkers: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "http://dlp-core:8080", cfg.Clients.Core.BaseURL)
	assert.Equal(t, 14, cfg.Analysis.DefaultLookbackDays)
	assert.Equal(t, 4, cfg.Analysis.OverviewWorkers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DLP_CORE_BASE_URL", "http://override:9999")
	t.Setenv("DLP_BEHAVIOR_EXPLAINER_URL", "http://explainer:7000")
	t.Setenv("DLP_BEHAVIOR_LOOKBACK_DAYS", "10")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://override:9999", cfg.Clients.Core.BaseURL)
	assert.Equal(t, "http://explainer:7000", cfg.Explainer.Endpoint)
	assert.True(t, cfg.Explainer.Enabled)
	assert.Equal(t, 10, cfg.Analysis.DefaultLookbackDays)
}

func TestNormaliseRejectsBadLookback(t *testing.T) {
	t.Setenv("DLP_BEHAVIOR_LOOKBACK_DAYS", "90")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Analysis.DefaultLookbackDays)
}
