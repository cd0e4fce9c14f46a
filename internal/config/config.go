// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package config loads service configuration from a YAML file, environment
// variables, and command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// envPrefix namespaces the environment variables the loader reads. Double
// underscore separates nesting levels so single underscores survive in key
// names: CARDROOM_DATABASE__URL maps to database.url,
// CARDROOM_AUTH__SIGNING_KEY to auth.signing_key.
const envPrefix = "CARDROOM_"

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig holds credential-service settings.
type AuthConfig struct {
	// SigningKey signs access tokens. Required, never logged.
	SigningKey string `koanf:"signing_key"`
}

// MailConfig holds notification delivery settings.
type MailConfig struct {
	// Mode selects the notifier: "smtp" or "log".
	Mode     string `koanf:"mode"`
	Addr     string `koanf:"addr"`
	From     string `koanf:"from"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	BaseURL  string `koanf:"base_url"`
}

// MetricsConfig holds observability server settings.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{URL: "postgres://localhost:5432/cardroom"},
		Mail:     MailConfig{Mode: "log", Addr: "localhost:25", From: "noreply@cardroom.local", BaseURL: "http://localhost:8080"},
		Metrics:  MetricsConfig{Addr: ":9090"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then CARDROOM_* environment variables, then flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return Config{}, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Auth.SigningKey == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.signing_key is required")
	}
	if c.Mail.Mode != "smtp" && c.Mail.Mode != "log" {
		return oops.Code("CONFIG_INVALID").Errorf("mail.mode must be smtp or log, got %q", c.Mail.Mode)
	}
	return nil
}

// FileExists reports whether a config file is present at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
