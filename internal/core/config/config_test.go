package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWatcherConfig(t *testing.T) {
	cfg := DefaultWatcherConfig()

	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 25*time.Millisecond, cfg.ProfileTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.EventDeadline)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 16384, cfg.CacheCapacity)
	assert.Equal(t, ":9147", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestWatcherConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WatcherConfig)
		wantErr string
	}{
		{"defaults are valid", func(cfg *WatcherConfig) {}, ""},
		{"zero workers", func(cfg *WatcherConfig) { cfg.Workers = 0 }, "workers"},
		{"negative profile timeout", func(cfg *WatcherConfig) { cfg.ProfileTimeout = -time.Second }, "profile_timeout"},
		{"zero event deadline", func(cfg *WatcherConfig) { cfg.EventDeadline = 0 }, "event_deadline"},
		{
			"event deadline shorter than profile timeout",
			func(cfg *WatcherConfig) {
				cfg.ProfileTimeout = time.Second
				cfg.EventDeadline = 100 * time.Millisecond
			},
			"event_deadline",
		},
		{"zero cache ttl", func(cfg *WatcherConfig) { cfg.CacheTTL = 0 }, "cache_ttl"},
		{"zero cache capacity", func(cfg *WatcherConfig) { cfg.CacheCapacity = 0 }, "cache_capacity"},
		{"bad log level", func(cfg *WatcherConfig) { cfg.LogLevel = "trace" }, "log_level"},
		{"bad log format", func(cfg *WatcherConfig) { cfg.LogFormat = "logfmt" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultWatcherConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWatcherConfig(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "killwatch.yaml")
	content := `watcher:
  database_url: sqlite://profiles.db
  workers: 4
  profile_timeout: 10ms
  event_deadline: 100ms
  cache_ttl: 30s
  log_format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite://profiles.db", cfg.DatabaseURL)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10*time.Millisecond, cfg.ProfileTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.EventDeadline)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "text", cfg.LogFormat)
	// Untouched keys keep their defaults.
	assert.Equal(t, 16384, cfg.CacheCapacity)
	assert.Equal(t, ":9147", cfg.MetricsAddr)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("KW_WATCHER_WORKERS", "8")
	t.Setenv("KW_WATCHER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_InvalidValuesRejected(t *testing.T) {
	t.Setenv("KW_WATCHER_WORKERS", "-1")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
