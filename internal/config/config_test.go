// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesDefaultConfigWhenMissing(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.FileExists(t, configPath)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 7400, cfg.Port)
	assert.True(t, cfg.FeatureAllowlist)
	assert.True(t, cfg.FeatureRLS)
	assert.True(t, cfg.FeatureCache)
}

func TestGetDatabasePathDefaultsNextToDataDir(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sqlgate.db"), cfg.GetDatabasePath())
}

func TestGetDatabasePathExplicit(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
host = "localhost"
port = 8080
databasePath = "/custom/path.db"
`), 0o644))

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/custom/path.db", cfg.GetDatabasePath())
}

func TestEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
host = "localhost"
port = 8080
`), 0o644))

	os.Setenv("SQLGATE_PORT", "9090")
	defer os.Unsetenv("SQLGATE_PORT")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
}

func TestFeatureTogglesDisabled(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
host = "localhost"
port = 8080

[features]
allowlist = false
rls = false
cache = false
`), 0o644))

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.False(t, cfg.FeatureAllowlist)
	assert.False(t, cfg.FeatureRLS)
	assert.False(t, cfg.FeatureCache)
}
