// Package config loads goclaw-browser settings from JSON, YAML or TOML.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/goclaw-browser/internal/browser"
	"github.com/roelfdiedericks/goclaw-browser/internal/logging"
	"github.com/roelfdiedericks/goclaw-browser/internal/paths"
)

// Config is the whole configuration file.
type Config struct {
	LogLevel string               `json:"logLevel" yaml:"logLevel" toml:"logLevel"` // trace, debug, info, warn, error
	Browser  browser.BrowserConfig `json:"browser" yaml:"browser" toml:"browser"`
	Audit    AuditConfig           `json:"audit" yaml:"audit" toml:"audit"`
}

// AuditConfig controls the action journal.
type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Path    string `json:"path" yaml:"path" toml:"path"` // empty = ~/.goclaw/browser-audit.db
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Browser:  browser.DefaultBrowserConfig(),
		Audit:    AuditConfig{Enabled: true},
	}
}

// Load reads the config at path, or the first config found by
// paths.ConfigPath when path is empty. Defaults are applied first and the
// file is decoded over them. A missing file is not an error; the returned
// path is empty in that case.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	if path == "" {
		found, err := paths.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		if found == "" {
			logging.L_debug("config: no config file found, using defaults")
			return cfg, "", nil
		}
		path = found
	}

	expanded, err := paths.ExpandTilde(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}
	if err := decode(expanded, data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", expanded, err)
	}

	logging.L_debug("config: loaded", "path", expanded)
	return cfg, expanded, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch format(path) {
	case "yaml":
		return yaml.Unmarshal(data, cfg)
	case "toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch format(path) {
	case "yaml":
		return yaml.Marshal(cfg)
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// ApplyOverrides merges the non-zero fields of overrides into cfg, e.g.
// values given on the command line. Zero values never replace settings,
// so a false bool cannot switch an option off this way.
func ApplyOverrides(cfg *Config, overrides Config) error {
	if err := mergo.Merge(cfg, overrides, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}
	return nil
}

// Save writes cfg to path in the format implied by its extension. The
// previous file, if any, is kept as path.bak. The write goes through a
// temp file in the same directory so readers never see a partial file.
func Save(path string, cfg *Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	expanded, err := paths.ExpandTilde(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(expanded)
	if err := paths.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if old, err := os.ReadFile(expanded); err == nil {
		if err := os.WriteFile(expanded+".bak", old, 0600); err != nil {
			logging.L_warn("config: backup failed, saving anyway", "path", expanded, "error", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(expanded)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := writeSynced(tmp, data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), expanded); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}

	logging.L_debug("config: saved", "path", expanded, "format", format(expanded))
	return nil
}

// writeSynced writes data with owner-only permissions, syncs and closes f.
func writeSynced(f *os.File, data []byte) error {
	err := f.Chmod(0600)
	if err == nil {
		_, err = f.Write(data)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
