package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.jolpi.ca/ergast/f1", cfg.Upstream.BaseURL)
	assert.Equal(t, 100, cfg.Upstream.PageSize)
	assert.InDelta(t, 4.0, cfg.Upstream.RatePerSec, 0.001)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 600, cfg.Retry.BaseDelayMs)
	assert.Equal(t, 500*time.Millisecond, cfg.Paginate.Pacing())
	assert.Equal(t, 5, cfg.Reconcile.SweepIntervalSecs)
	assert.Equal(t, 60, cfg.Reconcile.MaxSweeps)
	assert.Equal(t, 600, cfg.Reconcile.DeadlineSecs)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 2, cfg.PitStops.Concurrency)
	assert.Equal(t, 300, cfg.PitStops.DeadlineSecs)
	assert.Equal(t, 900, cfg.Server.JobRetentionSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
  dsn: /tmp/paddock.db
log:
  level: debug
  format: console
retry:
  max_attempts: 4
  base_delay_ms: 800
reconcile:
  max_sweeps: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "/tmp/paddock.db", cfg.Cache.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 800, cfg.Retry.BaseDelayMs)
	assert.Equal(t, 10, cfg.Reconcile.MaxSweeps)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Reconcile.SweepIntervalSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PADDOCK_CACHE_DRIVER", "memory")
	t.Setenv("PADDOCK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PADDOCK_SERVER_PORT", "3000")
	t.Setenv("PADDOCK_UPSTREAM_BASE_URL", "http://localhost:8000/ergast/f1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/ergast/f1", cfg.Upstream.BaseURL)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Upstream.BaseURL = "https://api.jolpi.ca/ergast/f1"
	cfg.Upstream.PageSize = 100
	cfg.Retry.MaxAttempts = 5
	cfg.Retry.BaseDelayMs = 600
	cfg.Cache.Driver = "memory"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("season"))
}

func TestValidate_Problems(t *testing.T) {
	cfg := validDefaults()
	cfg.Upstream.BaseURL = ""
	cfg.Upstream.PageSize = 500
	cfg.Retry.MaxAttempts = 0
	cfg.Cache.Driver = "redis"

	err := cfg.Validate("season")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.base_url is required")
	assert.Contains(t, err.Error(), "upstream.page_size must be 1..100")
	assert.Contains(t, err.Error(), "retry.max_attempts")
	assert.Contains(t, err.Error(), `cache.driver "redis"`)
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("drivers"))
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}
