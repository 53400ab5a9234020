package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: everything resolves
// relative to the executable directory, never the current working directory,
// so the binary behaves the same wherever it is launched from.
type Paths struct {
	ExecutableDir string
	DataDir       string
	ReportsDir    string
	LogsDir       string

	// Well-known files
	SnapshotDB   string
	CalendarFile string
}

// GetPaths returns the application paths relative to the executable location.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	exeDir := filepath.Dir(exe)
	dataDir := filepath.Join(exeDir, DefaultDataDir)

	paths := &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		ReportsDir:    filepath.Join(dataDir, "reports"),
		LogsDir:       filepath.Join(exeDir, DefaultLogsDir),
		SnapshotDB:    filepath.Join(dataDir, "snapshots.db"),
		CalendarFile:  filepath.Join(dataDir, "calendar.yaml"),
	}

	return paths, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ReportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution() {
	slog.Info("Resolved application paths",
		slog.String("executable_dir", p.ExecutableDir),
		slog.String("data_dir", p.DataDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("snapshot_db", p.SnapshotDB))
}

// ResolvePaths fills path-dependent config fields that were left empty, and
// makes sure the directories they point into exist.
func (c *Config) ResolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	if c.Cache.DBPath == "" {
		c.Cache.DBPath = paths.SnapshotDB
	}
	if c.Market.CalendarFile == "" {
		if _, err := os.Stat(paths.CalendarFile); err == nil {
			c.Market.CalendarFile = paths.CalendarFile
		}
	}
	if !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(paths.ExecutableDir, c.Logging.FilePath)
	}

	paths.LogPathResolution()

	return nil
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	paths, err := GetPaths()
	if err != nil {
		return DefaultDataDir
	}
	return paths.DataDir
}

// GetReportsDir returns the resolved reports directory path
func (c *Config) GetReportsDir() string {
	paths, err := GetPaths()
	if err != nil {
		return DefaultReportsDir
	}
	return paths.ReportsDir
}

// GetLogsDir returns the resolved logs directory path
func (c *Config) GetLogsDir() string {
	paths, err := GetPaths()
	if err != nil {
		return DefaultLogsDir
	}
	return paths.LogsDir
}
