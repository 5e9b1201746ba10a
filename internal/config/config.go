// Package config provides TOML configuration for the sync engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the full engine configuration, stored as TOML.
type Config struct {
	Local  Local  `toml:"local"`
	Remote Remote `toml:"remote"`
	Sync   Sync   `toml:"sync"`
}

// Local holds local storage settings.
type Local struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`
}

// Remote holds remote store connection settings.
type Remote struct {
	BaseURL      string `toml:"base_url"`
	Token        string `toml:"token"`
	ProbeAddr    string `toml:"probe_addr"`
	ProbeTimeout string `toml:"probe_timeout"`
}

// Sync holds reconciliation cycle settings.
type Sync struct {
	PollInterval  string `toml:"poll_interval"`
	SyncInterval  string `toml:"sync_interval"`
	CycleTimeout  string `toml:"cycle_timeout"`
	RetentionDays int    `toml:"retention_days"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Local: Local{
			DataDir:  defaultDataDir(),
			LogLevel: "info",
		},
		Remote: Remote{
			BaseURL:      "http://localhost:8080/api",
			ProbeAddr:    "localhost:8080",
			ProbeTimeout: "2s",
		},
		Sync: Sync{
			PollInterval:  "15s",
			SyncInterval:  "15m",
			CycleTimeout:  "2m",
			RetentionDays: 7,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".possync"
	}
	return filepath.Join(home, ".possync")
}

// Load reads the config file at path. A missing file yields defaults; a
// present but unparseable file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Duration parses a config duration string, falling back to def when the
// value is empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Retention returns the synced-entry retention window.
func (c *Config) Retention() time.Duration {
	days := c.Sync.RetentionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}
