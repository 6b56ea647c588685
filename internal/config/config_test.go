// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Fetcher.MaxRetries)
	assert.Equal(t, time.Second, cfg.Fetcher.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Fetcher.Timeout)
	assert.False(t, cfg.Fetcher.VerifyTLS, "verification is off by default")
	assert.True(t, cfg.Browser.IgnoreTLSErrors)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Recorder.Enabled)
	assert.Equal(t, 10000, cfg.Recorder.MaxEvents)
	assert.Equal(t, 10, cfg.Recorder.SummaryRecent)
	assert.Equal(t, "~/.webbridge/sessions", cfg.Session.Dir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retries", func(c *Config) { c.Fetcher.MaxRetries = 0 }},
		{"negative retry delay", func(c *Config) { c.Fetcher.RetryDelay = -time.Second }},
		{"zero timeout", func(c *Config) { c.Fetcher.Timeout = 0 }},
		{"negative rate", func(c *Config) { c.Fetcher.RatePerSecond = -1 }},
		{"negative batch concurrency", func(c *Config) { c.Fetcher.BatchConcurrency = -2 }},
		{"negative recorder cap", func(c *Config) { c.Recorder.MaxEvents = -1 }},
		{"zero summary size", func(c *Config) { c.Recorder.SummaryRecent = 0 }},
		{"empty session dir", func(c *Config) { c.Session.Dir = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("fetcher.max_retries", 5)
	v.Set("fetcher.retry_delay", "250ms")
	v.Set("fetcher.verify_tls", true)
	v.Set("session.dir", t.TempDir())

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Fetcher.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetcher.RetryDelay)
	assert.True(t, cfg.Fetcher.VerifyTLS)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("fetcher.max_retries", 0)

	_, err := NewConfigFromViper(v)
	assert.Error(t, err)
}

func TestExpandPaths(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.NotContains(t, cfg.Session.Dir, "~", "home-relative paths must be expanded")
}
