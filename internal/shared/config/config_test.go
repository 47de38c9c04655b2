package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/surgeonmatch_test")
	t.Setenv("SECRET_KEY", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultRateLimit != 100 {
		t.Errorf("DefaultRateLimit = %d, want 100", cfg.DefaultRateLimit)
	}
	if cfg.RateLimitPeriod != time.Minute {
		t.Errorf("RateLimitPeriod = %v, want 1m", cfg.RateLimitPeriod)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if !cfg.CacheEnabled {
		t.Error("CacheEnabled = false, want true")
	}
	if cfg.Debug {
		t.Error("Debug = true, want false")
	}
}

func TestLoadRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing database url", "DATABASE_URL"},
		{"missing secret key", "SECRET_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			if _, err := Load(); err == nil {
				t.Fatal("Load() succeeded, want error")
			}
		})
	}
}

func TestLoadRejectsNonPositiveRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEFAULT_RATE_LIMIT", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded, want error")
	}
}

func TestIsTestKeyEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"enabled in debug development", Config{Debug: true, Env: "development", TestAPIKey: "k"}, true},
		{"disabled without debug", Config{Debug: false, Env: "development", TestAPIKey: "k"}, false},
		{"never enabled in production", Config{Debug: true, Env: "production", TestAPIKey: "k"}, false},
		{"disabled without key", Config{Debug: true, Env: "development", TestAPIKey: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsTestKeyEnabled(); got != tt.want {
				t.Errorf("IsTestKeyEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
