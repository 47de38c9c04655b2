package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the API. It is constructed once in main
// and passed into component constructors; nothing reads the environment later.
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Security
	SecretKey        string
	AdminTokenExpiry time.Duration

	// Rate Limiting
	DefaultRateLimit int
	RateLimitPeriod  time.Duration

	// Caching
	CacheTTL     time.Duration
	CacheEnabled bool

	// Debug-only test credential. Honored only when Debug is set and the
	// environment is not production; see IsTestKeyEnabled.
	Debug           bool
	TestAPIKey      string
	TestRateLimit   int
	TestRateLimitID string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		SecretKey:        getEnv("SECRET_KEY", ""),
		AdminTokenExpiry: time.Duration(getEnvInt("ADMIN_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		DefaultRateLimit: getEnvInt("DEFAULT_RATE_LIMIT", 100),
		RateLimitPeriod:  time.Duration(getEnvInt("RATE_LIMIT_PERIOD_SECONDS", 60)) * time.Second,
		CacheTTL:         time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		CacheEnabled:     getEnvBool("CACHE_ENABLED", true),
		Debug:            getEnvBool("DEBUG", false),
		TestAPIKey:       getEnv("TEST_API_KEY", ""),
		TestRateLimit:    getEnvInt("TEST_RATE_LIMIT", 5),
		TestRateLimitID:  getEnv("TEST_API_KEY_ID", "test-api-key"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}
	if cfg.DefaultRateLimit <= 0 {
		return nil, fmt.Errorf("DEFAULT_RATE_LIMIT must be positive")
	}

	return cfg, nil
}

// IsTestKeyEnabled reports whether the fixed test credential may be used.
// It is never enabled in production regardless of the debug flag.
func (c *Config) IsTestKeyEnabled() bool {
	return c.Debug && c.Env != "production" && c.TestAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
