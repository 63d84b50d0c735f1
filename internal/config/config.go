// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the tunable settings of the sync core.
type Config struct {
	// Remote API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Local store
	DataDir string

	// Queue processing
	DefaultMaxRetries int
	RetryDelay        time.Duration // fixed delay before an automatic retry pass

	// Connectivity monitor
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// Orchestrator
	AutoSyncInterval time.Duration

	// Cache
	DefaultCacheTTL time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, applying
// defaults for anything unset.
func Load() *Config {
	return &Config{
		APIBaseURL:     getEnv("SYNC_API_BASE_URL", "http://localhost:8080/api"),
		RequestTimeout: getDuration("SYNC_REQUEST_TIMEOUT_MS", 15*time.Second),

		DataDir: getEnv("SYNC_DATA_DIR", ".equipment-sync"),

		DefaultMaxRetries: getInt("SYNC_MAX_RETRIES", 3),
		RetryDelay:        getDuration("SYNC_RETRY_DELAY_MS", 60*time.Second),

		ProbeInterval: getDuration("SYNC_PROBE_INTERVAL_MS", 10*time.Second),
		ProbeTimeout:  getDuration("SYNC_PROBE_TIMEOUT_MS", 5*time.Second),

		AutoSyncInterval: getDuration("SYNC_AUTO_INTERVAL_MS", 5*time.Minute),

		DefaultCacheTTL: getDuration("SYNC_CACHE_TTL_MS", 5*time.Minute),

		LogLevel: getEnv("SYNC_LOG_LEVEL", "INFO"),
	}
}

// getEnv returns the environment value or the fallback when unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt returns the environment value parsed as int, or the fallback.
func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getDuration returns the environment value parsed as milliseconds, or
// the fallback.
func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
