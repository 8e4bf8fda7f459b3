// Package config handles sqlited's configuration loading and validation.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every tunable the server reads at startup. Fields mirror
// the config-file keys one for one; the CLI flags override port, request
// workers, and log level.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
}

// ServerConfig controls the listening socket and worker pool sizing.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestWorkers int `mapstructure:"request_workers"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig holds the defaults applied when a connect request omits
// max_retry/sleep_ms, per spec.md §4.5.
type SessionConfig struct {
	DefaultMaxRetry int `mapstructure:"default_max_retry"`
	DefaultSleepMS  int `mapstructure:"default_sleep_ms"`
}

// DefaultConfig returns the configuration used when no config file is
// present and no flags override it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			RequestWorkers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			DefaultMaxRetry: 100,
			DefaultSleepMS:  100,
		},
	}
}

// Load reads configuration from path (if non-empty), environment variables
// prefixed SQLITED_, and falls back to DefaultConfig for anything unset.
// A missing config file is not an error — only a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := DefaultConfig()
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.request_workers", cfg.Server.RequestWorkers)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("session.default_max_retry", cfg.Session.DefaultMaxRetry)
	v.SetDefault("session.default_sleep_ms", cfg.Session.DefaultSleepMS)

	v.SetEnvPrefix("SQLITED")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Validate rejects configuration values that would make the server
// unusable before a single connection is accepted.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Server.RequestWorkers <= 0 {
		return fmt.Errorf("config: invalid server.request_workers %d", c.Server.RequestWorkers)
	}
	return nil
}
