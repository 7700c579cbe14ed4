// Package config loads tool settings from the user's config file.
//
// Settings live at ~/.config/dotnetup/config.toml. Every field is optional:
// a missing file, or any missing field, falls back to defaults that work
// with no configuration at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dotnetup/dotnetup/pkg/errors"
)

// Config is the tool's settings.
type Config struct {
	// InstallRoot is where local installs live. Empty means
	// ~/.dotnetup/dotnet.
	InstallRoot string `toml:"install_root"`

	// StateDir holds the install ledger and its lock file. Empty means
	// ~/.config/dotnetup/state.
	StateDir string `toml:"state_dir"`

	// IndexURL overrides where the release index is fetched from.
	IndexURL string `toml:"index_url"`

	// Architecture overrides the default install architecture
	// (x64, x86, arm, arm64). Empty means the host architecture.
	Architecture string `toml:"architecture"`

	// InstallTimeout bounds one installer run, e.g. "10m". Raise it on slow
	// connections; global installs download full platform packages.
	InstallTimeout Duration `toml:"install_timeout"`

	Cache CacheConfig `toml:"cache"`
	Lock  LockConfig  `toml:"lock"`
}

// CacheConfig controls release metadata caching.
type CacheConfig struct {
	// TTL is how long fetched metadata stays fresh, e.g. "12h".
	TTL Duration `toml:"ttl"`

	// Dir overrides the cache directory.
	Dir string `toml:"dir"`
}

// LockConfig controls ledger lock acquisition.
type LockConfig struct {
	// Attempts bounds how often acquisition is retried before giving up.
	Attempts int `toml:"attempts"`

	// Delay is the wait after the first failed attempt; it doubles on each
	// retry up to MaxDelay.
	Delay    Duration `toml:"delay"`
	MaxDelay Duration `toml:"max_delay"`
}

// Duration wraps time.Duration so TOML values can be written as text like
// "12h" or "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		InstallTimeout: Duration{10 * time.Minute},
		Cache:          CacheConfig{TTL: Duration{12 * time.Hour}},
		Lock: LockConfig{
			Attempts: 10,
			Delay:    Duration{100 * time.Millisecond},
			MaxDelay: Duration{2 * time.Second},
		},
	}
}

// Path returns the config file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "dotnetup", "config.toml"), nil
}

// StateDirPath returns the resolved ledger state directory, applying the
// default when the field is unset.
func (c Config) StateDirPath() (string, error) {
	if c.StateDir != "" {
		return c.StateDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "dotnetup", "state"), nil
}

// InstallRootPath returns the resolved local install root. The default
// matches what the local installer uses when handed an empty root.
func (c Config) InstallRootPath() (string, error) {
	if c.InstallRoot != "" {
		return c.InstallRoot, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".dotnetup", "dotnet"), nil
}

// Load reads the user's config file, falling back to defaults when none
// exists.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile reads one config file. A missing file is not an error; fields
// the file does not set keep their defaults, and zeroed-out retry and TTL
// settings are restored to defaults rather than left unusable.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.IndexURL != "" {
		if err := errors.ValidateURL(cfg.IndexURL); err != nil {
			return Config{}, fmt.Errorf("config %s: index_url: %w", path, err)
		}
	}

	defaults := Default()
	if cfg.InstallTimeout.Duration <= 0 {
		cfg.InstallTimeout = defaults.InstallTimeout
	}
	if cfg.Cache.TTL.Duration <= 0 {
		cfg.Cache.TTL = defaults.Cache.TTL
	}
	if cfg.Lock.Attempts <= 0 {
		cfg.Lock.Attempts = defaults.Lock.Attempts
	}
	if cfg.Lock.Delay.Duration <= 0 {
		cfg.Lock.Delay = defaults.Lock.Delay
	}
	if cfg.Lock.MaxDelay.Duration <= 0 {
		cfg.Lock.MaxDelay = defaults.Lock.MaxDelay
	}
	return cfg, nil
}
