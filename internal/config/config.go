package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// RuntimeConfig is the file/env-loadable subset of the engine's knobs. It is
// converted into a types.SecurityPolicy plus a few non-policy settings (the
// package repository URL, session timeout) that the policy itself doesn't
// carry.
type RuntimeConfig struct {
	ExecutionTimeoutSeconds int    `json:"executionTimeoutSeconds,omitempty"`
	MaxMemoryMB             int64  `json:"maxMemoryMB,omitempty"`
	RestrictAPIs            *bool  `json:"restrictAPIs,omitempty"`
	SessionTimeoutMinutes   int    `json:"sessionTimeoutMinutes,omitempty"`
	PackageRepositoryURL    string `json:"packageRepositoryURL,omitempty"`
	MaskSessionIDs          *bool  `json:"maskSessionIDs,omitempty"`
}

// DefaultPackageRepositoryURL is used when no configuration source sets one.
const DefaultPackageRepositoryURL = "https://api.nuget.org/v3/index.json"

// Load loads configuration from multiple sources (priority order):
//  1. Global config (~/.config/roslyn-stone/config.json(c))
//  2. Project config (directory/.roslyn-stone/config.json(c))
//  3. A .env file in directory, if present (values only take effect via
//     the environment-variable layer below)
//  4. Environment variables
func Load(directory string) (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{
		PackageRepositoryURL: DefaultPackageRepositoryURL,
	}

	globalPath := GetPaths().Config
	loadConfigFile(filepath.Join(globalPath, "config.json"), cfg)
	loadConfigFile(filepath.Join(globalPath, "config.jsonc"), cfg)

	if directory != "" {
		loadConfigFile(filepath.Join(directory, ".roslyn-stone", "config.json"), cfg)
		loadConfigFile(filepath.Join(directory, ".roslyn-stone", "config.jsonc"), cfg)

		envPath := filepath.Join(directory, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadConfigFile merges a single config file into cfg. It returns the read
// or parse error, also for a file that does not exist; Load ignores it,
// so such a file is skipped.
func loadConfigFile(path string, cfg *RuntimeConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = stripJSONComments(data)

	var fileConfig RuntimeConfig
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(cfg, &fileConfig)
	return nil
}

// stripJSONComments removes // and /* */ comments from JSONC.
func stripJSONComments(data []byte) []byte {
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	return multiLine.ReplaceAll(data, nil)
}

// mergeConfig merges source into target, overwriting any field source sets.
func mergeConfig(target, source *RuntimeConfig) {
	if source.ExecutionTimeoutSeconds != 0 {
		target.ExecutionTimeoutSeconds = source.ExecutionTimeoutSeconds
	}
	if source.MaxMemoryMB != 0 {
		target.MaxMemoryMB = source.MaxMemoryMB
	}
	if source.RestrictAPIs != nil {
		target.RestrictAPIs = source.RestrictAPIs
	}
	if source.SessionTimeoutMinutes != 0 {
		target.SessionTimeoutMinutes = source.SessionTimeoutMinutes
	}
	if source.PackageRepositoryURL != "" {
		target.PackageRepositoryURL = source.PackageRepositoryURL
	}
	if source.MaskSessionIDs != nil {
		target.MaskSessionIDs = source.MaskSessionIDs
	}
}

// applyEnvOverrides applies ROSLYN_STONE_* environment variable overrides,
// which take precedence over any file-sourced value.
func applyEnvOverrides(cfg *RuntimeConfig) {
	if v := os.Getenv("ROSLYN_STONE_EXECUTION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ExecutionTimeoutSeconds = n
		}
	}
	if v := os.Getenv("ROSLYN_STONE_MAX_MEMORY_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxMemoryMB = n
		}
	}
	if v := os.Getenv("ROSLYN_STONE_RESTRICT_APIS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RestrictAPIs = &b
		}
	}
	if v := os.Getenv("ROSLYN_STONE_SESSION_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionTimeoutMinutes = n
		}
	}
	if v := os.Getenv("ROSLYN_STONE_PACKAGE_REPOSITORY_URL"); v != "" {
		cfg.PackageRepositoryURL = v
	}
	if v := os.Getenv("ROSLYN_STONE_MASK_SESSION_IDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MaskSessionIDs = &b
		}
	}
}

// Policy converts a RuntimeConfig into a types.SecurityPolicy, starting from
// base (typically types.ProductionPolicy() or types.DevelopmentPolicy()) and
// overlaying any value the config source actually set.
func (cfg *RuntimeConfig) Policy(base types.SecurityPolicy) types.SecurityPolicy {
	policy := base
	if cfg.ExecutionTimeoutSeconds > 0 {
		policy.ExecutionTimeout = time.Duration(cfg.ExecutionTimeoutSeconds) * time.Second
	}
	if cfg.MaxMemoryMB > 0 {
		policy.MaxMemoryBytes = cfg.MaxMemoryMB * 1024 * 1024
	}
	if cfg.RestrictAPIs != nil {
		policy.RestrictAPIs = *cfg.RestrictAPIs
	}
	if cfg.MaskSessionIDs != nil {
		policy.MaskSessionIDsInLogs = *cfg.MaskSessionIDs
	}
	return policy
}

// SessionTimeout returns the configured session eviction timeout, defaulting
// to 30 minutes when unset.
func (cfg *RuntimeConfig) SessionTimeout() time.Duration {
	if cfg.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
}

// Save saves the configuration to a file.
func Save(cfg *RuntimeConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
