// Package config loads the optional YAML configuration of rate_table_tool.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory
// when no --config flag is given.
const DefaultFile = "rate_table_tool.yaml"

// Config holds the tool settings. Command line flags take precedence.
type Config struct {
	// Database is the database used when none is given on the command line.
	Database string        `yaml:"database"`
	Log      LogConfig     `yaml:"log"`
	Extract  ExtractConfig `yaml:"extract"`
}

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// ExtractConfig controls where and how extracted tables are written.
type ExtractConfig struct {
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"` // write .rates.xz instead of .rates
}

// DefaultConfig returns the settings used without a configuration file.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Extract: ExtractConfig{
			Dir: ".",
		},
	}
}

// Load reads the configuration at path. Settings missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
