// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Command sqlgate runs the SQL gateway: the embedded Storage Executor,
// the Operation Queue, the Pipeline Orchestrator, and the HTTP/WebSocket
// transport that fronts them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sqlgate",
		Short: "Single-tenant SQL gateway fronting an embedded SQLite store",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config.toml")

	cmd.AddCommand(runServeCommand(&configPath))

	return cmd
}
