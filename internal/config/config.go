package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	BaseURL    string `mapstructure:"BASE_URL"`

	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	HTTPTimeout       int     `mapstructure:"HTTP_TIMEOUT"` // in seconds
	MaxRetries        int     `mapstructure:"MAX_RETRIES"`
	RetryBaseDelayMS  int     `mapstructure:"RETRY_BASE_DELAY_MS"`
	RetryMaxJitterMS  int     `mapstructure:"RETRY_MAX_JITTER_MS"`
	RequestsPerSecond float64 `mapstructure:"REQUESTS_PER_SECOND"`

	ScrapeWorkers    int    `mapstructure:"SCRAPE_WORKERS"`
	DetailDelayMinMS int    `mapstructure:"DETAIL_DELAY_MIN_MS"`
	DetailDelayMaxMS int    `mapstructure:"DETAIL_DELAY_MAX_MS"`
	CastLimit        int    `mapstructure:"CAST_LIMIT"`
	ListSort         string `mapstructure:"LIST_SORT"`
	ListPageDelayMS  int    `mapstructure:"LIST_PAGE_DELAY_MS"`
	DetailCacheDays  int    `mapstructure:"DETAIL_CACHE_DAYS"`
}

// Load reads configuration from file or environment variables.
// An empty path means ".env" in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = ".env"
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = v.ReadInConfig()

	// Set default values
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BASE_URL", "https://letterboxd.com")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HTTP_TIMEOUT", 15)
	v.SetDefault("MAX_RETRIES", 2)
	v.SetDefault("RETRY_BASE_DELAY_MS", 500)
	v.SetDefault("RETRY_MAX_JITTER_MS", 250)
	v.SetDefault("REQUESTS_PER_SECOND", 0)
	v.SetDefault("SCRAPE_WORKERS", 10)
	v.SetDefault("DETAIL_DELAY_MIN_MS", 100)
	v.SetDefault("DETAIL_DELAY_MAX_MS", 600)
	v.SetDefault("CAST_LIMIT", 12)
	v.SetDefault("LIST_SORT", "date-earliest")
	v.SetDefault("LIST_PAGE_DELAY_MS", 250)
	v.SetDefault("DETAIL_CACHE_DAYS", 2)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the scraper cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL must not be empty"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %d", c.HTTPTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}
	if c.ScrapeWorkers < 1 {
		errs = append(errs, fmt.Errorf("SCRAPE_WORKERS must be at least 1, got %d", c.ScrapeWorkers))
	}
	if c.DetailDelayMinMS < 0 || c.DetailDelayMaxMS < c.DetailDelayMinMS {
		errs = append(errs, fmt.Errorf("detail delay window [%d, %d] is invalid", c.DetailDelayMinMS, c.DetailDelayMaxMS))
	}
	if c.CastLimit < 0 {
		errs = append(errs, fmt.Errorf("CAST_LIMIT must not be negative, got %d", c.CastLimit))
	}
	if c.ListPageDelayMS < 0 {
		errs = append(errs, fmt.Errorf("LIST_PAGE_DELAY_MS must not be negative, got %d", c.ListPageDelayMS))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("REQUESTS_PER_SECOND must not be negative, got %v", c.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c *Config) RetryMaxJitter() time.Duration {
	return time.Duration(c.RetryMaxJitterMS) * time.Millisecond
}

func (c *Config) DetailDelayWindow() (time.Duration, time.Duration) {
	return time.Duration(c.DetailDelayMinMS) * time.Millisecond, time.Duration(c.DetailDelayMaxMS) * time.Millisecond
}

func (c *Config) ListPageDelay() time.Duration {
	return time.Duration(c.ListPageDelayMS) * time.Millisecond
}

func (c *Config) DetailCacheTTL() time.Duration {
	return time.Duration(c.DetailCacheDays) * 24 * time.Hour
}
