// Package config loads tool configuration from YAML. The library API
// takes lsm.Options directly; this package serves the commands.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance
var validate = validator.New()

// Config is the YAML configuration of the lsmkv commands.
type Config struct {
	// DataDir roots the store's on-disk layout.
	DataDir string `yaml:"data_dir" validate:"required"`
	// CacheCapacity bounds the read cache entry count; 0 disables it.
	CacheCapacity int `yaml:"cache_capacity" validate:"gte=0"`
	// LogLevel selects the minimum log level.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir:       "./data",
		CacheCapacity: 0,
		LogLevel:      "INFO",
	}
}

// Load reads and validates a configuration file. Missing fields keep
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	return validate.Struct(c)
}
