package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"ROSLYN_STONE_EXECUTION_TIMEOUT_SECONDS",
		"ROSLYN_STONE_MAX_MEMORY_MB",
		"ROSLYN_STONE_RESTRICT_APIS",
		"ROSLYN_STONE_SESSION_TIMEOUT_MINUTES",
		"ROSLYN_STONE_PACKAGE_REPOSITORY_URL",
		"ROSLYN_STONE_MASK_SESSION_IDS",
		"XDG_CONFIG_HOME",
	}
	for _, v := range vars {
		old, ok := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if ok {
				os.Setenv(v, old)
			}
		})
	}
}

func TestLoadDefaultsWhenNoSourcesPresent(t *testing.T) {
	clearEnv(t)
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultPackageRepositoryURL, cfg.PackageRepositoryURL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
}

func TestLoadProjectConfigOverridesGlobal(t *testing.T) {
	clearEnv(t)
	configHome := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", configHome)

	globalDir := filepath.Join(configHome, "roslyn-stone")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config.json"),
		[]byte(`{"executionTimeoutSeconds": 10}`), 0644))

	projectDir := t.TempDir()
	projectConfigDir := filepath.Join(projectDir, ".roslyn-stone")
	require.NoError(t, os.MkdirAll(projectConfigDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectConfigDir, "config.jsonc"),
		[]byte("{\n  // override timeout\n  \"executionTimeoutSeconds\": 45\n}"), 0644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.ExecutionTimeoutSeconds)
}

func TestEnvOverridesWinOverFiles(t *testing.T) {
	clearEnv(t)
	configHome := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", configHome)
	os.Setenv("ROSLYN_STONE_EXECUTION_TIMEOUT_SECONDS", "99")
	os.Setenv("ROSLYN_STONE_RESTRICT_APIS", "false")

	projectDir := t.TempDir()
	projectConfigDir := filepath.Join(projectDir, ".roslyn-stone")
	require.NoError(t, os.MkdirAll(projectConfigDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectConfigDir, "config.json"),
		[]byte(`{"executionTimeoutSeconds": 10, "restrictAPIs": true}`), 0644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.ExecutionTimeoutSeconds)
	require.NotNil(t, cfg.RestrictAPIs)
	assert.False(t, *cfg.RestrictAPIs)
}

func TestStripJSONComments(t *testing.T) {
	input := []byte("{\n  // comment\n  \"a\": 1, /* inline */ \"b\": 2\n}")
	stripped := stripJSONComments(input)
	assert.NotContains(t, string(stripped), "comment")
	assert.NotContains(t, string(stripped), "inline")
}

func TestPolicyOverlaysOntoBase(t *testing.T) {
	restrict := false
	cfg := &RuntimeConfig{
		ExecutionTimeoutSeconds: 5,
		MaxMemoryMB:             128,
		RestrictAPIs:            &restrict,
	}

	policy := cfg.Policy(types.ProductionPolicy())
	assert.Equal(t, 5*time.Second, policy.ExecutionTimeout)
	assert.Equal(t, int64(128*1024*1024), policy.MaxMemoryBytes)
	assert.False(t, policy.RestrictAPIs)
	// Fields not touched by cfg keep the base preset's values.
	assert.True(t, policy.EnforceTimeout)
}

func TestSaveRoundTrips(t *testing.T) {
	cfg := &RuntimeConfig{ExecutionTimeoutSeconds: 20}
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "20")
}
