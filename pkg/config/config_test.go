package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lsmkv.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// TestLoad verifies a complete configuration file
func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/lsmkv
cache_capacity: 1024
log_level: DEBUG
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "/var/lib/lsmkv" {
		t.Errorf("DataDir = %q, want /var/lib/lsmkv", cfg.DataDir)
	}
	if cfg.CacheCapacity != 1024 {
		t.Errorf("CacheCapacity = %d, want 1024", cfg.CacheCapacity)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
}

// TestLoad_Defaults verifies missing fields keep their defaults
func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `data_dir: ./somewhere`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CacheCapacity != 0 {
		t.Errorf("CacheCapacity default = %d, want 0", cfg.CacheCapacity)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel default = %q, want INFO", cfg.LogLevel)
	}
}

// TestLoad_Invalid verifies validation failures
func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing data dir":  `data_dir: ""`,
		"negative cache":    "data_dir: ./d\ncache_capacity: -1",
		"unknown log level": "data_dir: ./d\nlog_level: LOUD",
		"broken yaml":       "data_dir: [unterminated",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("Load accepted an invalid config")
			}
		})
	}
}

// TestLoad_MissingFile verifies a readable error for absent files
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

// TestDefault verifies the built-in defaults validate
func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config does not validate: %v", err)
	}
}
