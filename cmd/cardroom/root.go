// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/cardroom/cardroom/internal/config"
	"github.com/cardroom/cardroom/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigFile returns the --config flag value, or the XDG default
// location when the flag is unset and a file exists there.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	if path := xdg.DefaultConfigFile(); config.FileExists(path) {
		return path
	}
	return ""
}

// NewRootCmd creates the root command for the cardroom CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardroom",
		Short: "Cardroom - account and credential service",
		Long: `Cardroom is the account backend for a multiplayer card-game service:
password authentication, access and refresh tokens, account confirmation,
and credential-change undo.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
