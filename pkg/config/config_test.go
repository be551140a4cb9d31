package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `env:"TEST_CFG_PORT" envDefault:"8003"`
	Host     string `env:"TEST_CFG_HOST" envDefault:"localhost"`
	LogLevel string `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"TEST_CFG_DEBUG" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8003, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_HOST", "0.0.0.0")
	t.Setenv("TEST_CFG_LOG_LEVEL", "debug")
	t.Setenv("TEST_CFG_DEBUG", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug)
}

type requiredConfig struct {
	APIKey string `env:"TEST_CFG_API_KEY,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RequiredFieldPresent(t *testing.T) {
	t.Setenv("TEST_CFG_API_KEY", "secret-123")

	var cfg requiredConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.APIKey)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadWithOverrides_OverrideWins(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")

	var cfg testConfig
	err := LoadWithOverrides(&cfg, map[string]string{"TEST_CFG_PORT": "7070"})

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
}

func TestLoadWithOverrides_FallsBackToEnv(t *testing.T) {
	t.Setenv("TEST_CFG_HOST", "10.0.0.1")

	var cfg testConfig
	err := LoadWithOverrides(&cfg, nil)

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadEnvFile(t *testing.T) {
	path := writeEnvFile(t, `
TEST_CFG_PORT: 7171
TEST_CFG_DEBUG: true
KAFKA_BROKERS: [kafka-1:9092, kafka-2:9092]
`)
	got, err := ReadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"TEST_CFG_PORT":  "7171",
		"TEST_CFG_DEBUG": "true",
		"KAFKA_BROKERS":  "kafka-1:9092,kafka-2:9092",
	}, got)

	var cfg testConfig
	require.NoError(t, LoadWithOverrides(&cfg, got))
	assert.Equal(t, 7171, cfg.Port)
	assert.True(t, cfg.Debug)
}

func TestReadEnvFile_Errors(t *testing.T) {
	_, err := ReadEnvFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = ReadEnvFile(writeEnvFile(t, "TEST_CFG_PORT: [1, [2]]\n"))
	assert.ErrorContains(t, err, "list items must be scalars")

	_, err = ReadEnvFile(writeEnvFile(t, "TEST_CFG_HOST:\n  nested: true\n"))
	assert.ErrorContains(t, err, "TEST_CFG_HOST")

	_, err = ReadEnvFile(writeEnvFile(t, "- just\n- a list\n"))
	assert.ErrorContains(t, err, "parse config file")
}

func TestMerge_LaterLayersWin(t *testing.T) {
	got := Merge(
		map[string]string{"A": "file", "B": "file"},
		nil,
		map[string]string{"B": "flag"},
	)
	assert.Equal(t, map[string]string{"A": "file", "B": "flag"}, got)
}
