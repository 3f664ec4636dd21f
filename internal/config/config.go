// Package config loads reactor settings from a file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the reactor server and CLI.
// Zero values in a file mean "unspecified" and keep the default.
type Config struct {
	Addr              string   `json:"addr" yaml:"addr" toml:"addr" env:"REACTOR_ADDR"`
	LogLevel          string   `json:"log_level" yaml:"log_level" toml:"log_level" env:"REACTOR_LOG_LEVEL"`
	LogFormat         string   `json:"log_format" yaml:"log_format" toml:"log_format" env:"REACTOR_LOG_FORMAT"`
	Journal           string   `json:"journal" yaml:"journal" toml:"journal" env:"REACTOR_JOURNAL"`
	ServiceName       string   `json:"service_name" yaml:"service_name" toml:"service_name" env:"REACTOR_SERVICE_NAME"`
	OTLPEndpoint      string   `json:"otlp_endpoint" yaml:"otlp_endpoint" toml:"otlp_endpoint" env:"REACTOR_OTLP_ENDPOINT"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"REACTOR_CORS_ORIGINS" envSeparator:","`
	ShutdownTimeoutMS int      `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms" env:"REACTOR_SHUTDOWN_TIMEOUT_MS"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		LogFormat:         "text",
		ServiceName:       "reactor",
		CORSOrigins:       []string{"*"},
		ShutdownTimeoutMS: 5000,
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ParseEnv overrides cfg with any REACTOR_* environment variables that are set.
func ParseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the file at
// path (if any), then the environment. The result is validated.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.Merge(file)
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of other applied on top.
func (c Config) Merge(other Config) Config {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Journal != "" {
		c.Journal = other.Journal
	}
	if other.ServiceName != "" {
		c.ServiceName = other.ServiceName
	}
	if other.OTLPEndpoint != "" {
		c.OTLPEndpoint = other.OTLPEndpoint
	}
	if len(other.CORSOrigins) > 0 {
		c.CORSOrigins = other.CORSOrigins
	}
	if other.ShutdownTimeoutMS != 0 {
		c.ShutdownTimeoutMS = other.ShutdownTimeoutMS
	}
	return c
}

// Validate checks enumerated and numeric fields.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be 'text' or 'json'", c.LogFormat)
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.ShutdownTimeoutMS < 0 {
		return fmt.Errorf("shutdown_timeout_ms must be >= 0, got %d", c.ShutdownTimeoutMS)
	}
	return nil
}

// Level returns the configured slog level. Invalid values fall back to info.
func (c Config) Level() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return lvl, nil
}
