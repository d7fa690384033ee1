package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds settings for the HTTP trigger API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Config holds runner-level settings, as distinct from any one pipeline's
// definition.
type Config struct {
	// DataDir is where run results and stage logs are persisted.
	DataDir string `toml:"data_dir"`
	// Builder picks the container tool: docker, podman, or buildah.
	// Empty means detect.
	Builder string `toml:"builder"`
	// RegistryURL is the endpoint probed before pushes. Empty means
	// Docker Hub.
	RegistryURL string       `toml:"registry_url"`
	Verbose     bool         `toml:"verbose"`
	Server      ServerConfig `toml:"server"`
}

const defaultServerAddr = ":8080"

// AddrOrDefault returns the configured server address, or ":8080".
func (c Config) AddrOrDefault() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return defaultServerAddr
}

// DataDirOrDefault returns the configured data directory, or
// ~/.local/share/slipway.
func (c Config) DataDirOrDefault() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "slipway")
}

// LoadConfig reads runner settings from the given TOML file path.
// A missing file yields an empty config without error. Environment
// variables always take precedence over file values:
//   - SLIPWAY_DATA_DIR     overrides data_dir
//   - SLIPWAY_BUILDER      overrides builder
//   - SLIPWAY_REGISTRY_URL overrides registry_url
//   - SLIPWAY_SERVER_ADDR  overrides server.addr
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// DefaultConfigPath returns the default path for the slipway config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "slipway", "config.toml")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLIPWAY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SLIPWAY_BUILDER"); v != "" {
		cfg.Builder = v
	}
	if v := os.Getenv("SLIPWAY_REGISTRY_URL"); v != "" {
		cfg.RegistryURL = v
	}
	if v := os.Getenv("SLIPWAY_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// SaveConfig writes cfg to the given TOML file path, creating parent
// directories as needed. The file is written with 0600 permissions.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
