// Package config reads the server configuration from an optional YAML file
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config is the top-level structure of the YAML file
type Config struct {
	Server ServerConfig `yaml:"server"`
	Source SourceConfig `yaml:"source"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SourceConfig selects and configures the statistics source
type SourceConfig struct {
	Type    string `yaml:"type"` // "http" | "postgres" | "sqlite"
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	DSN     string `yaml:"dsn"`
	Timeout string `yaml:"timeout"` // e.g. "30s"
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8001,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Source: SourceConfig{
			Type:    SourceHTTP,
			BaseURL: "http://localhost:3333/api",
			Timeout: "30s",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := getenv("STATS_SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := getenv("STATS_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := getenv("STATS_TOKEN"); v != "" {
		c.Source.Token = v
	}
	if v := getenv("STATS_DSN"); v != "" {
		c.Source.DSN = v
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Source.Type {
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the http source")
		}
	case SourcePostgres, SourceSQLite:
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for the %s source", c.Source.Type)
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}
	if _, err := c.Source.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses the source timeout; empty means the client default
func (s SourceConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid source.timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}
