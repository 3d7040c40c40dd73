// Package config discovers and loads dbcut's project-level TOML config
// file, dbcut.toml, which supplies defaults for the manifest path and
// cache directory when the CLI doesn't override them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ProjectConfig represents the dbcut.toml configuration file.
type ProjectConfig struct {
	Manifest       string `toml:"manifest"`
	CacheDir       string `toml:"cache_dir"`
	ConfigFilePath string `toml:"-"`
}

const fileName = "dbcut.toml"

// Load discovers dbcut.toml by walking up from the current working
// directory and loads it. Returns an empty ProjectConfig, not an error,
// when no file is found anywhere up to the project root — dbcut.toml is
// optional, every field overridable on the command line.
func Load() (*ProjectConfig, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return &ProjectConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPath
	return &cfg, nil
}

func findConfigPath() (string, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findConfigPathFrom(startDir)
}

func findConfigPathFrom(startDir string) (string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, fileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%s not found", fileName)
}

// isProjectRoot reports whether dir looks like the top of the repository:
// it carries .git or go.mod.
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	return false
}

// ConfigDir returns the directory dbcut.toml was loaded from, or "" when
// no file was found.
func (c *ProjectConfig) ConfigDir() string {
	if c == nil || c.ConfigFilePath == "" {
		return ""
	}
	return filepath.Dir(c.ConfigFilePath)
}

// EffectiveManifestPath resolves the manifest path with priority:
// explicit flag value > dbcut.toml > defaultValue.
func EffectiveManifestPath(explicitValue string, cfg *ProjectConfig, defaultValue string) string {
	if explicitValue != "" {
		return explicitValue
	}
	if cfg != nil && cfg.Manifest != "" {
		return cfg.Manifest
	}
	return defaultValue
}

// EffectiveCacheDir resolves the cache directory with priority: explicit
// flag value > dbcut.toml > defaultValue.
func EffectiveCacheDir(explicitValue string, cfg *ProjectConfig, defaultValue string) string {
	if explicitValue != "" {
		return explicitValue
	}
	if cfg != nil && cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return defaultValue
}
