// Package config loads and validates slicepad configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for slicepad.
type Config struct {
	Extract ExtractConfig `toml:"extract"`
	Sync    SyncConfig    `toml:"sync"`
	Backup  BackupConfig  `toml:"backup"`
	Log     LogConfig     `toml:"log"`
}

// ExtractConfig controls region extraction.
type ExtractConfig struct {
	// WindowRadius is the number of lines included on each side of a
	// candidate line when no symbol boundary is available.
	WindowRadius int `toml:"window_radius"`

	// GapThreshold is the maximum number of lines between two candidate
	// ranges that still causes them to be merged into one region.
	GapThreshold int `toml:"gap_threshold"`
}

// SyncConfig controls live synchronization.
type SyncConfig struct {
	// DebounceMs is the quiet period after an edit before a live sync runs.
	DebounceMs int `toml:"debounce_ms"`
}

// BackupConfig controls durable session backups.
type BackupConfig struct {
	// Dir is the directory where session snapshots are stored.
	// Empty means a "slicepad/backups" directory under the user cache dir.
	Dir string `toml:"dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Extract: ExtractConfig{
			WindowRadius: 7,
			GapThreshold: 2,
		},
		Sync: SyncConfig{
			DebounceMs: 275,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layered over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.Extract.WindowRadius < 0 {
		return fmt.Errorf("extract.window_radius must be >= 0, got %d", c.Extract.WindowRadius)
	}
	if c.Extract.GapThreshold < 0 {
		return fmt.Errorf("extract.gap_threshold must be >= 0, got %d", c.Extract.GapThreshold)
	}
	if c.Sync.DebounceMs < 0 {
		return fmt.Errorf("sync.debounce_ms must be >= 0, got %d", c.Sync.DebounceMs)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// BackupDir resolves the backup directory, falling back to the user
// cache directory when unset.
func (c Config) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return c.Backup.Dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving backup dir: %w", err)
	}
	return filepath.Join(cache, "slicepad", "backups"), nil
}
