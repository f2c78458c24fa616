package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 64, config.Storage.SQLite.CacheSizeMB)
	assert.True(t, config.Storage.SQLite.WALMode)
	assert.Equal(t, 20, config.Categories.MaxKeywords)
	assert.Equal(t, 1800, config.Jobs.ExecutionTimeoutSeconds)
	assert.Equal(t, 10, config.Jobs.MaxConcurrent)
	assert.Equal(t, 100, config.Jobs.DefaultMaxResults)
	assert.Equal(t, 500, config.Jobs.MaxResultsLimit)
	assert.Equal(t, 60, config.Scheduler.ScanIntervalSeconds)
	assert.Equal(t, 20, config.Dispatcher.CrawlPerMinute)
}

func TestLoadFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	base := filepath.Join(tempDir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[jobs]
max_concurrent = 4
`), 0644))

	override := filepath.Join(tempDir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9001
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	// Later file wins, untouched keys keep earlier or default values
	assert.Equal(t, 9001, config.Server.Port)
	assert.Equal(t, 4, config.Jobs.MaxConcurrent)
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/nuntius.toml")
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("NUNTIUS_SERVER_PORT", "7070")
	t.Setenv("NUNTIUS_LOG_LEVEL", "debug")
	t.Setenv("NUNTIUS_SQLITE_PATH", "/tmp/test.db")
	t.Setenv("NUNTIUS_MAX_CONCURRENT_JOBS", "3")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "/tmp/test.db", config.Storage.SQLite.Path)
	assert.Equal(t, 3, config.Jobs.MaxConcurrent)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 8200, "0.0.0.0")
	assert.Equal(t, 8200, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8200, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}
