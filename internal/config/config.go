// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Author   string `json:"author"`
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// Default returns the configuration used when no config file exists: data
// under .grove in the working directory, author from the environment.
func Default() *Config {
	author := os.Getenv("GROVE_AUTHOR")
	if author == "" {
		author = os.Getenv("USER")
	}
	if author == "" {
		author = "unknown"
	}

	return &Config{
		Author:   author,
		DataDir:  filepath.Join(".grove", "db"),
		LogLevel: "warn",
	}
}

// Path returns the config file location, honoring GROVE_CONFIG.
func Path() string {
	if p := os.Getenv("GROVE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(".grove", "config.json")
}

// Load reads the config at path, falling back to defaults for missing fields
// and returning pure defaults when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
