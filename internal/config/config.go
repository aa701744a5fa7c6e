package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// AppConfig carries process-level flags resolved before the config file loads.
type AppConfig struct {
	ConfigPath string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8318".
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Postgres URL or a sqlite file path.
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry-hours"`
}

// RedisConfig holds the rate limiter backend settings. An empty Addr
// disables the limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig bounds requests per user per window on the front API.
type RateLimitConfig struct {
	Requests int `yaml:"requests"`
	WindowS  int `yaml:"window-seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`       // trace/debug/info/warn/error.
	File       string `yaml:"file"`        // Empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotate threshold.
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Config is the root of the YAML config file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Log       LogConfig       `yaml:"log"`
}

// ResolveConfigPath expands the configured path relative to the working
// directory, falling back to DefaultConfigPath.
func ResolveConfigPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultConfigPath
	}
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		return abs
	}
	return path
}

// Load reads and validates the config file. Environment variables
// CREDITRAIL_DSN and CREDITRAIL_JWT_SECRET override the file values so
// secrets can stay out of the file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server:    ServerConfig{Addr: ":8318"},
		JWT:       JWTConfig{ExpiryHours: 72},
		RateLimit: RateLimitConfig{Requests: 120, WindowS: 60},
		Log:       LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
	}

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		if !os.IsNotExist(errRead) {
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
	} else if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	if dsn := strings.TrimSpace(os.Getenv("CREDITRAIL_DSN")); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv("CREDITRAIL_JWT_SECRET")); secret != "" {
		cfg.JWT.Secret = secret
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: database.dsn is required (or set CREDITRAIL_DSN)")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt.secret is required (or set CREDITRAIL_JWT_SECRET)")
	}
	return cfg, nil
}

// JWTExpiry returns the token lifetime as a duration.
func (c *Config) JWTExpiry() time.Duration {
	hours := c.JWT.ExpiryHours
	if hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}
