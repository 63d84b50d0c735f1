// Package config provides unit tests for environment configuration.
package config

import (
	"testing"
	"time"
)

// TestLoadDefaults tests that defaults apply when the environment is empty.
func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIBaseURL == "" {
		t.Error("Expected default API base URL")
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("Expected 15s request timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.RetryDelay != 60*time.Second {
		t.Errorf("Expected 60s retry delay, got %v", cfg.RetryDelay)
	}
	if cfg.DefaultMaxRetries != 3 {
		t.Errorf("Expected 3 max retries, got %d", cfg.DefaultMaxRetries)
	}
}

// TestLoadFromEnv tests that environment values override defaults.
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SYNC_API_BASE_URL", "http://cmms.local/api")
	t.Setenv("SYNC_RETRY_DELAY_MS", "5000")
	t.Setenv("SYNC_MAX_RETRIES", "7")

	cfg := Load()

	if cfg.APIBaseURL != "http://cmms.local/api" {
		t.Errorf("Expected overridden base URL, got %s", cfg.APIBaseURL)
	}
	if cfg.RetryDelay != 5*time.Second {
		t.Errorf("Expected 5s retry delay, got %v", cfg.RetryDelay)
	}
	if cfg.DefaultMaxRetries != 7 {
		t.Errorf("Expected 7 max retries, got %d", cfg.DefaultMaxRetries)
	}
}

// TestLoadRejectsGarbage tests that unparseable numbers fall back.
func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("SYNC_MAX_RETRIES", "many")
	t.Setenv("SYNC_RETRY_DELAY_MS", "-10")

	cfg := Load()

	if cfg.DefaultMaxRetries != 3 {
		t.Errorf("Expected fallback max retries, got %d", cfg.DefaultMaxRetries)
	}
	if cfg.RetryDelay != 60*time.Second {
		t.Errorf("Expected fallback retry delay, got %v", cfg.RetryDelay)
	}
}
