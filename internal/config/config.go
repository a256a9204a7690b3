// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

// Package config loads the gateway's TOML configuration file, applying
// environment variable overrides and sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sqlgate/sqlgate/internal/domain"
)

const envPrefix = "SQLGATE"

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

host = "127.0.0.1"
port = 7400

# Directory holding the embedded database and any derived files.
# Default: next to this config file
#dataDir = "./data"

# Path to the embedded SQLite database file.
# Default: <dataDir>/sqlgate.db
#databasePath = "/custom/path.db"

# Log level. Default: "INFO"
# Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
logLevel = "INFO"

# If not set, logs to stderr.
#logPath = "log/sqlgate.log"

adminToken = ""
clientToken = ""

queueTimeoutSeconds = 25
cacheTtlSeconds = 60

[features]
allowlist = true
rls = true
cache = true
`

// AppConfig is the loaded, defaulted configuration.
type AppConfig struct {
	*domain.Config

	configPath string
}

// New loads configuration from configPath, writing a default file there if
// none exists yet, then applies SQLGATE_-prefixed environment overrides
// (for example SQLGATE_PORT).
func New(configPath string) (*AppConfig, error) {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0o644); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 7400)
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("queueTimeoutSeconds", 25)
	v.SetDefault("cacheTtlSeconds", 60)
	v.SetDefault("features.allowlist", true)
	v.SetDefault("features.rls", true)
	v.SetDefault("features.cache", true)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.FeatureAllowlist = v.GetBool("features.allowlist")
	cfg.FeatureRLS = v.GetBool("features.rls")
	cfg.FeatureCache = v.GetBool("features.cache")

	if cfg.DataDir == "" {
		cfg.DataDir = dir
	}

	return &AppConfig{Config: &cfg, configPath: configPath}, nil
}

// GetDatabasePath returns the configured embedded database file path,
// defaulting to sqlgate.db inside the data directory.
func (c *AppConfig) GetDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "sqlgate.db")
}
