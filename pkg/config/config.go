package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogsDir    string `mapstructure:"LOGS_DIR"`
	UserAgent  string `mapstructure:"USER_AGENT"`

	// Providers is an ordered, comma-separated chain tried in sequence
	// until one yields a non-empty, non-error result.
	Providers string `mapstructure:"PROVIDERS"`

	DiscoverWorkers int `mapstructure:"DISCOVER_WORKERS"`
	PageWorkers     int `mapstructure:"PAGE_WORKERS"`
	DownloadWorkers int `mapstructure:"DOWNLOAD_WORKERS"`

	SearchRate          float64 `mapstructure:"SEARCH_RATE"`
	SearchBurst         int     `mapstructure:"SEARCH_BURST"`
	FetchRate           float64 `mapstructure:"FETCH_RATE"`
	FetchBurst          int     `mapstructure:"FETCH_BURST"`
	RateWarnThresholdMS int     `mapstructure:"RATE_WARN_THRESHOLD_MS"`

	RobotsFailOpen      bool `mapstructure:"ROBOTS_FAIL_OPEN"`
	RobotsCacheTTLHours int  `mapstructure:"ROBOTS_CACHE_TTL_HOURS"`

	PageFetchMode      string `mapstructure:"PAGE_FETCH_MODE"` // "http" or "browser"
	HTTPTimeoutSeconds int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	MaxRetries         int    `mapstructure:"MAX_RETRIES"`

	// Optional backends. Empty values disable the corresponding adapter.
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// The .env file is optional; production configures purely via env.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOGS_DIR", "discovery_logs")
	viper.SetDefault("USER_AGENT", "Mozilla/5.0 (compatible; ImageDiscovery/1.0)")
	viper.SetDefault("PROVIDERS", "duckduckgo,serp")
	viper.SetDefault("DISCOVER_WORKERS", 4)
	viper.SetDefault("PAGE_WORKERS", 8)
	viper.SetDefault("DOWNLOAD_WORKERS", 8)
	viper.SetDefault("SEARCH_RATE", 1.0)
	viper.SetDefault("SEARCH_BURST", 3)
	viper.SetDefault("FETCH_RATE", 5.0)
	viper.SetDefault("FETCH_BURST", 10)
	viper.SetDefault("RATE_WARN_THRESHOLD_MS", 2000)
	viper.SetDefault("ROBOTS_FAIL_OPEN", false)
	viper.SetDefault("ROBOTS_CACHE_TTL_HOURS", 24)
	viper.SetDefault("PAGE_FETCH_MODE", "http")
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 15)
	viper.SetDefault("MAX_RETRIES", 3)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProviderChain returns the configured provider names in order.
func (c *Config) ProviderChain() []string {
	var names []string
	for _, p := range strings.Split(c.Providers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// HTTPTimeout returns the request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// RateWarnThreshold returns the throttling warning threshold as a duration.
func (c *Config) RateWarnThreshold() time.Duration {
	return time.Duration(c.RateWarnThresholdMS) * time.Millisecond
}

// RobotsCacheTTL returns the cross-run robots cache TTL as a duration.
func (c *Config) RobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}
