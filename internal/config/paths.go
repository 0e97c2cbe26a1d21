// Package config provides configuration loading and path management for
// Roslyn-Stone: a security policy plus runtime settings, loaded from a
// JSON/JSONC file, an optional .env file, and environment variables.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard XDG-style paths for Roslyn-Stone data.
type Paths struct {
	Config string // ~/.config/roslyn-stone
	Cache  string // ~/.cache/roslyn-stone (package artifact cache)
	State  string // ~/.local/state/roslyn-stone
}

// GetPaths returns the standard paths for Roslyn-Stone data.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "roslyn-stone"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "roslyn-stone"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "roslyn-stone"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// PackageCachePath returns the directory the dependency resolver caches
// downloaded artifacts under.
func (p *Paths) PackageCachePath() string {
	return filepath.Join(p.Cache, "packages")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}

// GlobalConfigPath returns the path to the global config file (without
// extension; both .json and .jsonc are probed).
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "config")
}

// ProjectConfigPath returns the path to the project-local config file
// (without extension) under directory.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".roslyn-stone", "config")
}
