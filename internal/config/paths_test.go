package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(paths.ExecutableDir))
	assert.Equal(t, filepath.Join(paths.ExecutableDir, DefaultDataDir), paths.DataDir)
	assert.Equal(t, filepath.Join(paths.DataDir, "reports"), paths.ReportsDir)
	assert.Equal(t, filepath.Join(paths.ExecutableDir, DefaultLogsDir), paths.LogsDir)
	assert.Equal(t, filepath.Join(paths.DataDir, "snapshots.db"), paths.SnapshotDB)
	assert.Equal(t, filepath.Join(paths.DataDir, "calendar.yaml"), paths.CalendarFile)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths := &Paths{
		DataDir:    filepath.Join(base, "data"),
		ReportsDir: filepath.Join(base, "data", "reports"),
		LogsDir:    filepath.Join(base, "logs"),
	}

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.DataDir, paths.ReportsDir, paths.LogsDir} {
		assert.DirExists(t, dir)
	}

	// Idempotent on existing directories
	assert.NoError(t, paths.EnsureDirectories())
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.Cache.DBPath = ""
	cfg.Logging.FilePath = "logs/app.log"

	require.NoError(t, cfg.ResolvePaths())

	paths, err := GetPaths()
	require.NoError(t, err)

	assert.Equal(t, paths.SnapshotDB, cfg.Cache.DBPath)
	assert.True(t, filepath.IsAbs(cfg.Logging.FilePath))
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "logs", "app.log"), cfg.Logging.FilePath)
}

func TestResolvePaths_KeepsExplicitValues(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "custom.db")
	logPath := filepath.Join(t.TempDir(), "app.log")

	cfg := Default()
	cfg.Cache.DBPath = dbPath
	cfg.Logging.FilePath = logPath

	require.NoError(t, cfg.ResolvePaths())

	assert.Equal(t, dbPath, cfg.Cache.DBPath)
	assert.Equal(t, logPath, cfg.Logging.FilePath)
}
