// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package xdg provides XDG Base Directory paths for cardroom.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "cardroom"

// ConfigDir returns the XDG config directory for cardroom.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the conventional config file location,
// used when no --config flag is given.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
