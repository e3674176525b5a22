// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command codestory builds and serves call-resolution indexes.
//
// The input is a directory of scope tree files: one JSON document per
// source file, produced by a language frontend. From those it builds a
// symbol table, an inheritance hierarchy with a precomputed override
// index, per-file name bindings, and a call graph whose edges carry
// dispatch kind and resolution confidence.
//
// Usage:
//
//	codestory build --trees ./trees --project-root /path/to/project
//	codestory callers --db ~/.codestory/db --qname app.services.Worker.run
//	codestory callees --db ~/.codestory/db --qname app.main
//	codestory snapshots --db ~/.codestory/db
//	codestory serve --port 8080 --db ~/.codestory/db
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Shared flag values across subcommands.
var (
	configPath  string
	dbPath      string
	projectRoot string
	logDebug    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codestory",
		Short: "Call-resolution indexing for scope tree exports",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if logDebug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (optional)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "BadgerDB directory for snapshots")
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newCallersCmd())
	rootCmd.AddCommand(newCalleesCmd())
	rootCmd.AddCommand(newSnapshotsCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
