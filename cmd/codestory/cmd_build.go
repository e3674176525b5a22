// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheGreenCedar/CodeStory/services/index"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

func newBuildCmd() *cobra.Command {
	var (
		treesDir string
		label    string
		save     bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from a directory of scope tree JSON files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := loadScopeTrees(treesDir)
			if err != nil {
				return err
			}
			if projectRoot == "" {
				projectRoot = treesDir
			}

			cfg, err := index.LoadServiceConfig(configPath)
			if err != nil {
				return err
			}
			if save {
				if dbPath == "" {
					return fmt.Errorf("--save requires --db")
				}
				cfg.SnapshotDBPath = dbPath
			}

			var opts []index.ServiceOption
			if progress {
				opts = append(opts, index.WithProgress(func(phase string, done, total int) {
					fmt.Fprintf(os.Stderr, "\r%s: %d/%d files", phase, done, total)
					if done == total {
						fmt.Fprintln(os.Stderr)
					}
				}))
			}

			svc, err := index.NewService(cfg, opts...)
			if err != nil {
				return err
			}
			defer svc.Close()

			ci, err := svc.BuildIndex(cmd.Context(), projectRoot, files)
			if err != nil {
				return err
			}
			printStats(ci)

			if save {
				meta, err := svc.Snapshots().Save(cmd.Context(), ci.Graph, label)
				if err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
				fmt.Printf("Snapshot saved: %s (hash %s)\n", meta.SnapshotID, meta.GraphHash[:12])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&treesDir, "trees", "", "directory of scope tree JSON files")
	cmd.Flags().StringVar(&projectRoot, "project-root", "", "project root label (defaults to --trees)")
	cmd.Flags().StringVar(&label, "label", "", "optional snapshot label")
	cmd.Flags().BoolVar(&save, "save", false, "persist the call graph to --db")
	cmd.Flags().BoolVar(&progress, "progress", false, "print per-phase build progress to stderr")
	_ = cmd.MarkFlagRequired("trees")
	return cmd
}

// loadScopeTrees reads every .json file under dir as a scope tree.
//
// Description:
//
//	Files that fail to parse are skipped with a warning; the build
//	itself reports structural problems through diagnostics.
func loadScopeTrees(dir string) ([]*scopetree.File, error) {
	var files []*scopetree.File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		var f scopetree.File
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("skipping unparseable scope tree",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		files = append(files, &f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scope tree files found under %s", dir)
	}
	return files, nil
}

func printStats(ci *index.CachedIndex) {
	s := ci.Stats
	fmt.Printf("Index %s built in %dms\n", ci.ID, s.DurationMillis)
	fmt.Printf("  files:       %d processed, %d failed\n", s.FilesProcessed, s.FilesFailed)
	fmt.Printf("  definitions: %d (%d duplicates)\n", s.Definitions, s.Duplicates)
	fmt.Printf("  classes:     %d (%d cyclic)\n", s.Classes, s.CyclicClasses)
	fmt.Printf("  call sites:  %d (%d suspended), %d edges\n", s.CallSites, s.Suspended, s.Edges)
	fmt.Printf("  confidence:  %d exact, %d ambiguous, %d unknown\n",
		s.Confidence.Exact, s.Confidence.Ambiguous, s.Confidence.Unknown)
	fmt.Printf("  strategies:  %d direct, %d declared-type, %d self, %d name+arity, %d unresolved\n",
		s.Strategies.Direct, s.Strategies.DeclaredType, s.Strategies.SelfMember,
		s.Strategies.NameArity, s.Strategies.Unresolved)

	if s.Warnings > 0 || s.Errors > 0 {
		fmt.Printf("  diagnostics: %d warnings, %d errors\n", s.Warnings, s.Errors)
		for _, d := range ci.Diags.Items() {
			fmt.Printf("    [%s] %s\n", d.Severity, d.Error())
		}
	}
}
