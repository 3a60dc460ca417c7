package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg := LoadWithDefaults()

	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, "az", cfg.CLICommand)
	assert.Equal(t, "arm-ttk", cfg.ValidatorCommand)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	// Given a TOML config file overriding some values
	dir := t.TempDir()
	configPath := filepath.Join(dir, "azmp.toml")
	content := `
max_concurrency = 4
timeout = "10s"
retries = 1
output_dir = "out"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	// Then file values win and the rest stay at defaults
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "az", cfg.CLICommand)
}

func TestLoadWithPrecedence_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "azmp.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("max_concurrency = 4\n"), 0644))

	t.Setenv("AZMP_MAX_CONCURRENCY", "7")

	cfg, err := LoadWithPrecedence(configPath, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxConcurrency)
}

func TestLoadWithPrecedence_ExplicitFlagsWin(t *testing.T) {
	t.Setenv("AZMP_RETRIES", "9")

	flags := &Config{Retries: 0, MaxConcurrency: 2}
	explicit := map[string]bool{"retries": true, "max_concurrency": true}

	cfg, err := LoadWithPrecedence("", flags, explicit)
	require.NoError(t, err)

	// An explicitly set zero flag beats the environment
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, 2, cfg.MaxConcurrency)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := LoadWithDefaults()
	cfg.MaxConcurrency = 0
	cfg.Retries = -1
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency")
	assert.Contains(t, err.Error(), "retries")
	assert.Contains(t, err.Error(), "log_level")
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", FindConfigFile(dir))

	configPath := filepath.Join(dir, ".azmp.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0644))
	assert.Equal(t, configPath, FindConfigFile(dir))
}
