// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// Config represents the application configuration loaded from TOML plus
// environment variable overrides.
type Config struct {
	Version string

	Host    string `toml:"host" mapstructure:"host"`
	BaseURL string `toml:"baseUrl" mapstructure:"baseUrl"`

	LogLevel string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath  string `toml:"logPath" mapstructure:"logPath"`

	DataDir      string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`

	AdminToken  string `toml:"adminToken" mapstructure:"adminToken"`
	ClientToken string `toml:"clientToken" mapstructure:"clientToken"`

	// JWKSIssuer/JWKSAudience enable verifying bearer tokens as JWTs against
	// a remote key set rather than the two static tokens above.
	JWKSIssuer   string `toml:"jwksIssuer" mapstructure:"jwksIssuer"`
	JWKSAudience string `toml:"jwksAudience" mapstructure:"jwksAudience"`

	// External backend (Postgres/MySQL/remote-SQLite) used when a caller's
	// request carries X-Starbase-Source: external.
	ExternalEngine   string `toml:"externalEngine" mapstructure:"externalEngine"`
	ExternalDSN      string `toml:"externalDsn" mapstructure:"externalDsn"`
	ExternalHTTPURL  string `toml:"externalHttpUrl" mapstructure:"externalHttpUrl"`
	ExternalHTTPAuth string `toml:"externalHttpAuth" mapstructure:"externalHttpAuth"`

	Port        int `toml:"port" mapstructure:"port"`
	MetricsPort int `toml:"metricsPort" mapstructure:"metricsPort"`

	QueueTimeoutSeconds int `toml:"queueTimeoutSeconds" mapstructure:"queueTimeoutSeconds"`
	CacheTTLSeconds     int `toml:"cacheTtlSeconds" mapstructure:"cacheTtlSeconds"`

	FeatureAllowlist bool `toml:"featureAllowlist" mapstructure:"featureAllowlist"`
	FeatureRLS       bool `toml:"featureRls" mapstructure:"featureRls"`
	FeatureCache     bool `toml:"featureCache" mapstructure:"featureCache"`

	MetricsEnabled bool `toml:"metricsEnabled" mapstructure:"metricsEnabled"`

	CORSAllowedOrigins []string `toml:"corsAllowedOrigins" mapstructure:"corsAllowedOrigins"`
}

// QueueTimeout returns the configured per-operation queue deadline, or the
// 25s default from §4.2 of the design when unset.
func (c *Config) QueueTimeout() time.Duration {
	if c == nil || c.QueueTimeoutSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.QueueTimeoutSeconds) * time.Second
}

// CacheTTL returns the configured cache entry lifetime, or the 60s default.
func (c *Config) CacheTTL() time.Duration {
	if c == nil || c.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
