// Package config loads tool configuration from a YAML file with
// environment variable fallbacks.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "connmap.yaml"

// Config holds the tool's settings.
type Config struct {
	// Classification is the path to the classification CSV (.csv, .csv.zst, .csv.gz).
	Classification string `yaml:"classification"`
	// Connections is the path to the connections CSV.
	Connections string `yaml:"connections"`
	// OutDir is where map files, images, and the catalog are written.
	OutDir string `yaml:"out_dir"`
	// Regions lists the classes extracted by `extract --all`.
	Regions []string `yaml:"regions"`
	// Cell is the default heatmap cell size in pixels.
	Cell int `yaml:"cell"`
}

// Default returns the built-in defaults, with CONNMAP_* environment
// overrides applied.
func Default() *Config {
	cfg := &Config{
		Classification: "./Data/classification.csv",
		Connections:    "./Data/connections.csv",
		OutDir:         ".",
		Cell:           4,
	}
	cfg.applyEnv()
	return cfg
}

// Load reads the config file at path, falling back to defaults for
// unset fields. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	defaults := Default()
	if cfg.Classification == "" {
		cfg.Classification = defaults.Classification
	}
	if cfg.Connections == "" {
		cfg.Connections = defaults.Connections
	}
	if cfg.OutDir == "" {
		cfg.OutDir = defaults.OutDir
	}
	if cfg.Cell == 0 {
		cfg.Cell = defaults.Cell
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONNMAP_CLASSIFICATION"); v != "" {
		c.Classification = v
	}
	if v := os.Getenv("CONNMAP_CONNECTIONS"); v != "" {
		c.Connections = v
	}
	if v := os.Getenv("CONNMAP_OUT"); v != "" {
		c.OutDir = v
	}
	if v := os.Getenv("CONNMAP_CELL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cell = n
		}
	}
}
