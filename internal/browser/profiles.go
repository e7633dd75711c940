package browser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// ProfileInfo describes one persistent profile directory.
type ProfileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	LastUsed time.Time `json:"lastUsed"`
}

// Profiles manages persistent user-data directories under one root.
// Cookies and local storage accumulate in a profile across sessions;
// clearing it resets that state.
type Profiles struct {
	root string
}

// NewProfiles creates a profile manager rooted at dir.
func NewProfiles(dir string) *Profiles {
	return &Profiles{root: dir}
}

// Root returns the profiles directory.
func (p *Profiles) Root() string { return p.root }

// Dir returns the directory for a profile without creating it.
func (p *Profiles) Dir(name string) (string, error) {
	if name == "" {
		name = "default"
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", invalidParams("profile", "invalid profile name %q", name)
	}
	return filepath.Join(p.root, name), nil
}

// Ensure creates the profile directory if needed and removes lock files
// left behind by a crashed browser, which would otherwise refuse to start.
func (p *Profiles) Ensure(name string) (string, error) {
	dir, err := p.Dir(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", execErr("launch", "failed to create profile directory", err)
	}
	removeStaleLocks(dir)
	L_debug("browser: ensured profile", "name", name, "path", dir)
	return dir, nil
}

var singletonFiles = []string{"SingletonLock", "SingletonCookie", "SingletonSocket"}

func removeStaleLocks(dir string) {
	for _, f := range singletonFiles {
		lock := filepath.Join(dir, f)
		// SingletonLock is usually a dangling symlink, so Lstat
		if _, err := os.Lstat(lock); err != nil {
			continue
		}
		if err := os.Remove(lock); err != nil {
			L_warn("browser: failed to remove stale lock file", "file", lock, "error", err)
			continue
		}
		L_info("browser: removed stale lock file", "file", lock)
	}
}

// List returns every profile, sorted by name.
func (p *Profiles) List() ([]ProfileInfo, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []ProfileInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	out := make([]ProfileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, profileInfo(e.Name(), filepath.Join(p.root, e.Name())))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func profileInfo(name, dir string) ProfileInfo {
	info := ProfileInfo{Name: name, Path: dir}
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			info.Size += fi.Size()
		}
		if fi.ModTime().After(info.LastUsed) {
			info.LastUsed = fi.ModTime()
		}
		return nil
	})
	return info
}

// Clear removes all data from a profile but keeps the directory.
func (p *Profiles) Clear(name string) error {
	dir, err := p.Dir(name)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("profile does not exist: %s", name)
		}
		return fmt.Errorf("failed to read profile directory: %w", err)
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	L_info("browser: cleared profile", "name", name)
	return nil
}

// FormatSize returns a human-readable size string
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
