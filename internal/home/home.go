package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the dwcbatch home directory.
	DefaultDirName = ".dwcbatch"

	// RunsDirName is the subdirectory holding one directory per run.
	RunsDirName = "runs"

	// ExportsDirName is the subdirectory for exported spreadsheets.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the dwcbatch home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.dwcbatch).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.RunsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	return nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// RunsPath returns the directory holding all run directories.
func (d *Dir) RunsPath() string {
	return filepath.Join(d.path, RunsDirName)
}

// RunDir returns the artifact directory for a run.
func (d *Dir) RunDir(runID string) string {
	return filepath.Join(d.RunsPath(), runID)
}

// ExportsDir returns the directory for exported files.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, ExportsDirName)
}

// ExportPath returns the default spreadsheet path for a batch.
func (d *Dir) ExportPath(batchID string) string {
	return filepath.Join(d.ExportsDir(), batchID+".xlsx")
}
