package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*WatcherConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultWatcherConfig
	v.SetDefault("watcher.database_url", "")
	v.SetDefault("watcher.workers", 16)
	v.SetDefault("watcher.profile_timeout", "25ms")
	v.SetDefault("watcher.event_deadline", "250ms")
	v.SetDefault("watcher.cache_ttl", "2m")
	v.SetDefault("watcher.cache_capacity", 16384)
	v.SetDefault("watcher.metrics_addr", ":9147")
	v.SetDefault("watcher.log_level", "info")
	v.SetDefault("watcher.log_format", "json")

	// Bind environment variables with KW_ prefix
	v.SetEnvPrefix("KW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &WatcherConfig{
		DatabaseURL:    v.GetString("watcher.database_url"),
		Workers:        v.GetInt("watcher.workers"),
		ProfileTimeout: v.GetDuration("watcher.profile_timeout"),
		EventDeadline:  v.GetDuration("watcher.event_deadline"),
		CacheTTL:       v.GetDuration("watcher.cache_ttl"),
		CacheCapacity:  v.GetInt("watcher.cache_capacity"),
		MetricsAddr:    v.GetString("watcher.metrics_addr"),
		LogLevel:       v.GetString("watcher.log_level"),
		LogFormat:      v.GetString("watcher.log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
