// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port     string
	LogLevel string

	VenueDataURL   string
	VenueClobURL   string
	VenueAPIKey    string
	PageSize       int
	HardCap        int
	RequestTimeout time.Duration
	MaxRetries     int
	CacheTTL       time.Duration

	DatabaseURL string // empty: in-memory history
	RedisURL    string // empty: no caching

	WindowDays int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		VenueDataURL:   getEnv("VENUE_DATA_URL", "https://data-api.polymarket.com"),
		VenueClobURL:   getEnv("VENUE_CLOB_URL", "https://clob.polymarket.com"),
		VenueAPIKey:    getEnv("VENUE_API_KEY", ""),
		PageSize:       getEnvAsInt("PAGE_SIZE", 500),
		HardCap:        getEnvAsInt("HARD_CAP", 10000),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		MaxRetries:     getEnvAsInt("MAX_RETRIES", 2),
		CacheTTL:       getEnvAsDuration("CACHE_TTL", 30*time.Second),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		WindowDays:     getEnvAsInt("WINDOW_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and sizes are sane.
func (c *Config) Validate() error {
	if c.VenueDataURL == "" {
		return fmt.Errorf("config: VENUE_DATA_URL is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.HardCap < c.PageSize {
		return fmt.Errorf("config: HARD_CAP (%d) must be at least PAGE_SIZE (%d)", c.HardCap, c.PageSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: REQUEST_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MAX_RETRIES must not be negative")
	}
	if c.WindowDays <= 0 {
		return fmt.Errorf("config: WINDOW_DAYS must be positive, got %d", c.WindowDays)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
