// Package config loads stepmerger's project configuration: the
// FILE_DESCRIPTION implementation level and FILE_SCHEMA list a merge writes into its
// output header, the logging level, and the watch-mode debounce.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// LogLevel selects which severities the CLI's logger writes.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the four recognized levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Config is the complete stepmerger project configuration.
type Config struct {
	Merge MergeConfig `toml:"merge"`
	Log   LogConfig   `toml:"log"`
	Watch WatchConfig `toml:"watch"`
}

// MergeConfig controls the fixed HEADER fields a merge writes.
type MergeConfig struct {
	// ImplementationLevel is the FILE_DESCRIPTION implementation level,
	// e.g. "2;1".
	ImplementationLevel string `toml:"implementation_level"`
	// Schemas is the FILE_SCHEMA list, e.g. ["CONFIG_CONTROL_DESIGN"].
	Schemas []string `toml:"schemas"`
	// LoadReferences controls whether a merge resolves and stitches in
	// every node's linked part file by default.
	LoadReferences bool `toml:"load_references"`
}

// LogConfig controls the CLI's logger.
type LogConfig struct {
	Level LogLevel `toml:"level"`
}

// WatchConfig controls `merge --watch`'s debounce.
type WatchConfig struct {
	// DebounceMillis is how long to wait after the last filesystem event
	// before re-running the merge.
	DebounceMillis int `toml:"debounce_ms"`
}

// Debounce returns w.DebounceMillis as a time.Duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMillis) * time.Millisecond
}

// DefaultConfig returns stepmerger's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Merge: MergeConfig{
			ImplementationLevel: "2;1",
			Schemas:             []string{"CONFIG_CONTROL_DESIGN"},
			LoadReferences:      true,
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
		Watch: WatchConfig{
			DebounceMillis: 250,
		},
	}
}

// Load loads configuration from, in increasing precedence: built-in
// defaults, a user config (~/.stepmerger/config.toml), a project config
// (./stepmerger.toml), and overrides (typically CLI flags). Only
// non-empty, non-zero override fields are applied; Merge.LoadReferences
// is never taken from overrides.
func Load(overrides *Config) (*Config, error) {
	cfg := DefaultConfig()

	userConfigPath := filepath.Join(os.Getenv("HOME"), ".stepmerger", "config.toml")
	if err := loadConfigFile(userConfigPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	projectConfigPath := "stepmerger.toml"
	if err := loadConfigFile(projectConfigPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	if overrides != nil {
		if overrides.Merge.ImplementationLevel != "" {
			cfg.Merge.ImplementationLevel = overrides.Merge.ImplementationLevel
		}
		if len(overrides.Merge.Schemas) > 0 {
			cfg.Merge.Schemas = overrides.Merge.Schemas
		}
		if overrides.Log.Level != "" {
			cfg.Log.Level = overrides.Log.Level
		}
		if overrides.Watch.DebounceMillis != 0 {
			cfg.Watch.DebounceMillis = overrides.Watch.DebounceMillis
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadConfigFile loads a TOML file into cfg. A missing file is not an
// error; defaults (or whatever cfg already holds) are used instead.
func loadConfigFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate checks that every configured field is well-formed.
func (c *Config) Validate() error {
	if c.Merge.ImplementationLevel == "" {
		return fmt.Errorf("merge.implementation_level must not be empty")
	}
	if len(c.Merge.Schemas) == 0 {
		return fmt.Errorf("merge.schemas must list at least one schema")
	}
	if !c.Log.Level.IsValid() {
		return fmt.Errorf("invalid log.level: %q (must be 'debug', 'info', 'warn', or 'error')", c.Log.Level)
	}
	if c.Watch.DebounceMillis < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMillis)
	}
	return nil
}
