package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file
const (
	EnvLibraryPath = "JUKEBOX_LIBRARY_PATH"
	EnvLogLevel    = "JUKEBOX_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Playback PlaybackConfig `toml:"playback"`
	Logging  LoggingConfig  `toml:"logging"`
}

// LibraryConfig contains music library configuration
type LibraryConfig struct {
	RootPath          string `toml:"root_path"`
	Workers           int    `toml:"workers"`
	ExtractTimeoutMs  int    `toml:"extract_timeout_ms"`
	DurationTimeoutMs int    `toml:"duration_timeout_ms"`
	WatchForChanges   bool   `toml:"watch_for_changes"`
	DebounceMs        int    `toml:"debounce_ms"`
}

// PlaybackConfig contains sequencer policy
type PlaybackConfig struct {
	AutoPlayOnSelect bool `toml:"auto_play_on_select"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			RootPath:          "./music",
			Workers:           4,
			ExtractTimeoutMs:  50,
			DurationTimeoutMs: 2000,
			WatchForChanges:   false,
			DebounceMs:        500,
		},
		Playback: PlaybackConfig{
			AutoPlayOnSelect: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with defaults
// when it does not exist yet. Environment overrides are applied last.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv loads a .env file if present and applies the JUKEBOX_* overrides
func (c *Config) ApplyEnv() {
	// A missing .env is normal
	_ = godotenv.Load(".env")

	if v := strings.TrimSpace(os.Getenv(EnvLibraryPath)); v != "" {
		c.Library.RootPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Jukebox Configuration
# root_path is the music library opened at startup.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Library.RootPath == "" {
		return fmt.Errorf("library root path cannot be empty")
	}
	if c.Library.Workers < 1 {
		return fmt.Errorf("library workers must be at least 1")
	}
	if c.Library.ExtractTimeoutMs < 1 {
		return fmt.Errorf("library extract timeout must be positive")
	}
	if c.Library.DurationTimeoutMs < 1 {
		return fmt.Errorf("library duration timeout must be positive")
	}
	if c.Library.DebounceMs < 0 {
		return fmt.Errorf("library debounce cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// ExtractTimeout returns the per-file tag read deadline
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Library.ExtractTimeoutMs) * time.Millisecond
}

// DurationTimeout returns the per-file deadline for measuring playing time
func (c *Config) DurationTimeout() time.Duration {
	return time.Duration(c.Library.DurationTimeoutMs) * time.Millisecond
}

// Debounce returns the delay between a filesystem change and the rescan
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Library.DebounceMs) * time.Millisecond
}
