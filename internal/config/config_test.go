package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidecab/glidecab/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 500, cfg.Realtime.Backoff.InitialIntervalMS)
	assert.Equal(t, 30000, cfg.Realtime.Backoff.MaxIntervalMS)
	assert.Equal(t, uint64(0), cfg.Realtime.Backoff.MaxRetries, "unbounded retries with capped delay by default")
	assert.Equal(t, 1000, cfg.Tracking.PositionAnimationMS)
	assert.Equal(t, 800, cfg.Tracking.BearingAnimationMS)
	assert.Equal(t, 3000, cfg.Camera.QuietWindowMS)
	assert.Equal(t, 4000, cfg.Notifications.BannerDurationMS)
	assert.Equal(t, 8090, cfg.Simulator.Port)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
realtime:
  url: ws://rides.example.com/ws
  backoff:
    initialIntervalMS: 250
    maxRetries: 5
camera:
  quietWindowMS: 5000
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://rides.example.com/ws", cfg.Realtime.URL)
	assert.Equal(t, 250, cfg.Realtime.Backoff.InitialIntervalMS)
	assert.Equal(t, uint64(5), cfg.Realtime.Backoff.MaxRetries)
	assert.Equal(t, 5000, cfg.Camera.QuietWindowMS)

	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.Tracking.PositionAnimationMS)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
realtime:
  backoff:
    jitter: 3.0
`), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
