// Package config loads server configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

// KeySpaceConfig declares a keyspace and its indexes to register at startup.
type KeySpaceConfig struct {
	Name    string                   `yaml:"name"`
	Indexes []domain.IndexDefinition `yaml:"indexes,omitempty"`
}

// Config is the full server configuration.
type Config struct {
	Listen     string           `yaml:"listen"`
	DataDir    string           `yaml:"data_dir"`
	InMemory   bool             `yaml:"in_memory"`
	SyncWrites bool             `yaml:"sync_writes"`
	KeySpaces  []KeySpaceConfig `yaml:"keyspaces,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:  ":8080",
		DataDir: "schemaless-data",
	}
}

// Load reads a YAML configuration file, filling unset fields with defaults.
// An in-memory config gets no default data directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.DataDir = ""

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.DataDir == "" && !cfg.InMemory {
		cfg.DataDir = "schemaless-data"
	}
	for _, ks := range cfg.KeySpaces {
		if ks.Name == "" {
			return nil, fmt.Errorf("config %s: keyspace entry without a name", path)
		}
	}
	return cfg, nil
}
