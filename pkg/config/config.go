// Package config loads the focusd configuration from a YAML file with
// ${VAR} environment expansion and sensible defaults.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	LogLevel        string        `yaml:"log_level"` // "debug", "info", "warn", "error"
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	// JWTSecret is the HMAC key tokens are verified against.
	JWTSecret string `yaml:"jwt_secret"`
}

// DatabaseConfig configures the Postgres connection. An empty URL selects
// the in-memory stores (single-process mode, no durability).
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// TrackingConfig configures the live session tracker.
type TrackingConfig struct {
	// TickInterval is the accumulator advancement period.
	TickInterval time.Duration `yaml:"tick_interval"`

	// IdleThreshold is the inactivity window after which tick time counts
	// as idle.
	IdleThreshold time.Duration `yaml:"idle_threshold"`
}

// Load reads the config file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		data = []byte(expandEnvVars(string(data)))

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Validate checks the fields the service cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Tracking.TickInterval <= 0 {
		return fmt.Errorf("tracking.tick_interval must be positive")
	}
	if c.Tracking.IdleThreshold <= 0 {
		return fmt.Errorf("tracking.idle_threshold must be positive")
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Tracking.TickInterval == 0 {
		cfg.Tracking.TickInterval = time.Second
	}
	if cfg.Tracking.IdleThreshold == 0 {
		cfg.Tracking.IdleThreshold = 15 * time.Second
	}
}
