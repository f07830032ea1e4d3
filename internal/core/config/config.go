// Package config provides configuration management for killwatch services.
package config

import (
	"fmt"
	"time"
)

// WatcherConfig holds configuration for the killmail watcher service.
type WatcherConfig struct {
	DatabaseURL    string
	Workers        int
	ProfileTimeout time.Duration
	EventDeadline  time.Duration
	CacheTTL       time.Duration
	CacheCapacity  int
	MetricsAddr    string
	LogLevel       string
	LogFormat      string
}

// DefaultWatcherConfig returns configuration with default values.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		Workers:        16,
		ProfileTimeout: 25 * time.Millisecond,
		EventDeadline:  250 * time.Millisecond,
		CacheTTL:       2 * time.Minute,
		CacheCapacity:  16384,
		MetricsAddr:    ":9147",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Validate checks value ranges. Called by the loader and by anyone
// constructing a config programmatically.
func (cfg *WatcherConfig) Validate() error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.ProfileTimeout <= 0 {
		return fmt.Errorf("profile_timeout must be positive, got %v", cfg.ProfileTimeout)
	}
	if cfg.EventDeadline <= 0 {
		return fmt.Errorf("event_deadline must be positive, got %v", cfg.EventDeadline)
	}
	if cfg.EventDeadline < cfg.ProfileTimeout {
		return fmt.Errorf("event_deadline (%v) must not be shorter than profile_timeout (%v)",
			cfg.EventDeadline, cfg.ProfileTimeout)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %v", cfg.CacheTTL)
	}
	if cfg.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", cfg.CacheCapacity)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}
