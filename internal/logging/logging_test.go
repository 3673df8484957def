package logging

import (
	"os"
	"path/filepath"
	"testing"

	"jukebox/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "jukebox.log")

	logger, err := New(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		File:       file,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("scan_id", "abc").Info("scan complete")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scan_id":"abc"`)
	assert.Contains(t, string(data), "scan complete")
}
