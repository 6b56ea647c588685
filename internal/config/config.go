// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is populated from
// defaults, an optional YAML config file and WEBBRIDGE_* environment
// variables, in ascending order of precedence.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher" yaml:"fetcher"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// FetcherConfig tunes the raw HTTPS fetch engine.
type FetcherConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// VerifyTLS enables certificate validation. Off by default: the whole
	// point of this tool is reaching endpoints with broken certificates.
	VerifyTLS bool   `mapstructure:"verify_tls" yaml:"verify_tls"`
	Proxy     string `mapstructure:"proxy" yaml:"proxy"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// RatePerSecond throttles outgoing attempts across all fetches issued by
	// one engine. Zero disables throttling.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	// BatchConcurrency caps in-flight fetches during batch fan-out. Zero means
	// unlimited.
	BatchConcurrency int    `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
	DownloadDir      string `mapstructure:"download_dir" yaml:"download_dir"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Proxy             string        `mapstructure:"proxy" yaml:"proxy"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// SessionConfig configures the on-disk session store.
type SessionConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RecorderConfig configures the network activity recorder.
type RecorderConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// MaxEvents caps each of the request/response buffers (ring behavior, the
	// oldest events are dropped first). Zero keeps every event.
	MaxEvents int `mapstructure:"max_events" yaml:"max_events"`
	// SummaryRecent is how many recent events of each kind a summary carries.
	SummaryRecent int `mapstructure:"summary_recent" yaml:"summary_recent"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webbridge")
	v.SetDefault("logger.log_file", "webbridge.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Fetcher --
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.retry_delay", "1s")
	v.SetDefault("fetcher.timeout", "30s")
	v.SetDefault("fetcher.verify_tls", false)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("fetcher.rate_per_second", 0)
	v.SetDefault("fetcher.batch_concurrency", 0)
	v.SetDefault("fetcher.download_dir", "downloads")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.screenshot_dir", "screenshots")

	// -- Session --
	v.SetDefault("session.dir", "~/.webbridge/sessions")

	// -- Recorder --
	v.SetDefault("recorder.enabled", true)
	v.SetDefault("recorder.max_events", 10000)
	v.SetDefault("recorder.summary_recent", 10)
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that already has file/env sources attached.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Fetcher.MaxRetries <= 0 {
		return fmt.Errorf("fetcher.max_retries must be a positive integer")
	}
	if c.Fetcher.RetryDelay < 0 {
		return fmt.Errorf("fetcher.retry_delay must not be negative")
	}
	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be a positive duration")
	}
	if c.Fetcher.RatePerSecond < 0 {
		return fmt.Errorf("fetcher.rate_per_second must not be negative")
	}
	if c.Fetcher.BatchConcurrency < 0 {
		return fmt.Errorf("fetcher.batch_concurrency must not be negative")
	}
	if c.Recorder.MaxEvents < 0 {
		return fmt.Errorf("recorder.max_events must not be negative")
	}
	if c.Recorder.SummaryRecent <= 0 {
		return fmt.Errorf("recorder.summary_recent must be a positive integer")
	}
	if c.Session.Dir == "" {
		return fmt.Errorf("session.dir is required")
	}
	return nil
}

// expandPaths resolves "~" in user-supplied directories.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Session.Dir,
		&c.Fetcher.DownloadDir,
		&c.Browser.ScreenshotDir,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}
