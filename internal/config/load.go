package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up when no path is given.
const FileName = "lodgen.yaml"

// Load loads configuration with priority: defaults < file < flags.
// f may be nil when there are no command-line overrides.
func Load(f *Flags) (*Config, error) {
	cfg := Default()

	// Explicit path takes priority
	var configPath string
	if f != nil {
		configPath = f.Config
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	if f != nil {
		f.apply(cfg)
	}

	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		filepath.Join(".", FileName),
		filepath.Join(ConfigDir(), FileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "lodgen")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lodgen")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "lodgen")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "lodgen")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
// Unknown keys are rejected so that typos do not silently fall back to defaults.
func loadFromFile(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
