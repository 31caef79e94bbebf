package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the dispatch server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`          // Listen address (default ":8080")
	LogLevel     string        `yaml:"log_level"`     // Log level: debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`    // Log format: text, json
	DBPath       string        `yaml:"db_path"`       // SQLite database path (":memory:" for testing)
	LeaseTimeout time.Duration `yaml:"lease_timeout"` // How long a dispatched test may stay in flight
	MaxFailures  int           `yaml:"max_failures"`  // Retry bound before a test is abandoned
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
		LeaseTimeout: 10 * time.Minute,
		MaxFailures:  3,
	}
}

// LoadFile overlays the YAML config at path onto c. Fields absent from the
// file keep their current values, so flag parsing after LoadFile wins.
func (c *ServerConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
