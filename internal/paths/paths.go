// Package paths provides centralized path resolution for goclaw-browser.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileNames are the config file names searched for, in order.
var ConfigFileNames = []string{
	"goclaw-browser.json",
	"goclaw-browser.yaml",
	"goclaw-browser.yml",
	"goclaw-browser.toml",
}

// BaseDir returns the base directory (~/.goclaw).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".goclaw"), nil
}

// DataPath returns a path within the data directory (~/.goclaw/<subpath>).
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// BrowserDir returns the default browser data directory (~/.goclaw/browser).
func BrowserDir() (string, error) {
	return DataPath("browser")
}

// ConfigPath returns the active config file path.
// Priority: ./goclaw-browser.* (current dir) > ~/.goclaw/goclaw-browser.*
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath() (string, error) {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(name); err == nil {
			absPath, err := filepath.Abs(name)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return absPath, nil
		}
	}

	for _, name := range ConfigFileNames {
		globalPath, err := DataPath(name)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(globalPath); err == nil {
			return globalPath, nil
		}
	}

	return "", nil
}

// DefaultConfigPath returns the default location for new configs.
func DefaultConfigPath() (string, error) {
	return DataPath(ConfigFileNames[0])
}

// EnsureDir creates a directory if it doesn't exist.
// Uses 0750 permissions (owner: rwx, group: rx, other: none).
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// ExpandTilde expands a path that starts with ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
