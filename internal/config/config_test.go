package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "PAGE_SIZE", "HARD_CAP", "REQUEST_TIMEOUT", "WINDOW_DAYS", "DATABASE_URL", "REDIS_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 10000, cfg.HardCap)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAGE_SIZE", "100")
	t.Setenv("HARD_CAP", "2000")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("WINDOW_DAYS", "7")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 2000, cfg.HardCap)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, 2, cfg.MaxRetries, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{VenueDataURL: "http://x", PageSize: 500, HardCap: 10000, RequestTimeout: time.Second, WindowDays: 30}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"no url":         func(c *Config) { c.VenueDataURL = "" },
		"zero page":      func(c *Config) { c.PageSize = 0 },
		"cap below page": func(c *Config) { c.HardCap = 100 },
		"zero timeout":   func(c *Config) { c.RequestTimeout = 0 },
		"zero window":    func(c *Config) { c.WindowDays = 0 },
	}
	for name, mutate := range cases {
		c := base()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: ""}).SlogLevel())
}
