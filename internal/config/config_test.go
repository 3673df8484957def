package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	t.Setenv(EnvLibraryPath, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be written")

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 50*time.Millisecond, cfg.ExtractTimeout())
	assert.Equal(t, 2*time.Second, cfg.DurationTimeout())
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(EnvLibraryPath, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[library]
root_path = "/srv/music"
workers = 8
extract_timeout_ms = 120
duration_timeout_ms = 300
debounce_ms = 250

[playback]
auto_play_on_select = false

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/music", cfg.Library.RootPath)
	assert.Equal(t, 8, cfg.Library.Workers)
	assert.Equal(t, 120*time.Millisecond, cfg.ExtractTimeout())
	assert.Equal(t, 300*time.Millisecond, cfg.DurationTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
	assert.False(t, cfg.Playback.AutoPlayOnSelect)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLibraryPath, "/mnt/usb/music")
	t.Setenv(EnvLogLevel, "WARN")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "/mnt/usb/music", cfg.Library.RootPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty root", func(c *Config) { c.Library.RootPath = "" }, true},
		{"zero workers", func(c *Config) { c.Library.Workers = 0 }, true},
		{"zero timeout", func(c *Config) { c.Library.ExtractTimeoutMs = 0 }, true},
		{"zero duration timeout", func(c *Config) { c.Library.DurationTimeoutMs = 0 }, true},
		{"negative debounce", func(c *Config) { c.Library.DebounceMs = -1 }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
