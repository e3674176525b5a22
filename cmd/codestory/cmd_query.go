// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/TheGreenCedar/CodeStory/services/index/callgraph"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

func newCallersCmd() *cobra.Command {
	return newEdgeCmd("callers", "List definitions that call the given one", true)
}

func newCalleesCmd() *cobra.Command {
	return newEdgeCmd("callees", "List definitions the given one calls", false)
}

func newEdgeCmd(use, short string, incoming bool) *cobra.Command {
	var (
		qname      string
		snapshotID string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := loadGraph(cmd.Context(), snapshotID)
			if err != nil {
				return err
			}

			def, err := findByQualifiedName(g, qname)
			if err != nil {
				return err
			}

			var edges []callgraph.Edge
			if incoming {
				edges = g.CallersOf(def.ID)
			} else {
				edges = g.CalleesOf(def.ID)
			}
			if len(edges) == 0 {
				fmt.Printf("%s: no %s\n", qname, use)
				return nil
			}

			for _, e := range edges {
				peerID := e.FromID
				if !incoming {
					peerID = e.ToID
				}
				peer, ok := g.Node(peerID)
				if !ok {
					continue
				}
				marker := ""
				if e.Suspended {
					marker = " [suspended]"
				}
				fmt.Printf("%s  (%s, %s) at %s:%d:%d%s\n",
					peer.QualifiedName, e.Dispatch, e.Confidence,
					def.FilePath, e.Line, e.Col, marker)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&qname, "qname", "", "qualified name of the definition")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot ID (defaults to latest for --project-root)")
	cmd.Flags().StringVar(&projectRoot, "project-root", "", "project root used when --snapshot is not given")
	_ = cmd.MarkFlagRequired("qname")
	return cmd
}

func newSnapshotsCmd() *cobra.Command {
	var deleteID string

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List or delete stored call graph snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeDB, err := openSnapshotStore()
			if err != nil {
				return err
			}
			defer closeDB()

			if deleteID != "" {
				if err := store.Delete(cmd.Context(), deleteID); err != nil {
					return err
				}
				fmt.Printf("Deleted snapshot %s\n", deleteID)
				return nil
			}

			projectHash := ""
			if projectRoot != "" {
				projectHash = callgraph.ProjectHash(projectRoot)
			}
			metas, err := store.List(cmd.Context(), projectHash, 0)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Println("No snapshots found")
				return nil
			}
			for _, m := range metas {
				fmt.Printf("%s  %s  defs=%d edges=%d sites=%d  %s\n",
					m.SnapshotID, m.ProjectRoot,
					m.DefinitionCount, m.EdgeCount, m.SiteCount, m.Label)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&deleteID, "delete", "", "snapshot ID to delete")
	cmd.Flags().StringVar(&projectRoot, "project-root", "", "filter by project root")
	return cmd
}

func openSnapshotStore() (*callgraph.SnapshotStore, func(), error) {
	if dbPath == "" {
		return nil, nil, fmt.Errorf("--db is required")
	}
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot db at %s: %w", dbPath, err)
	}
	store, err := callgraph.NewSnapshotStore(db, slog.Default())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

func loadGraph(ctx context.Context, snapshotID string) (*callgraph.Graph, error) {
	store, closeDB, err := openSnapshotStore()
	if err != nil {
		return nil, err
	}
	defer closeDB()

	if snapshotID != "" {
		g, _, err := store.Load(ctx, snapshotID)
		return g, err
	}
	if projectRoot == "" {
		return nil, fmt.Errorf("either --snapshot or --project-root is required")
	}
	g, _, err := store.LoadLatest(ctx, callgraph.ProjectHash(projectRoot))
	return g, err
}

func findByQualifiedName(g *callgraph.Graph, qname string) (*symtab.Definition, error) {
	def, ok := g.NodeByQualifiedName(qname)
	if !ok {
		return nil, fmt.Errorf("no definition with qualified name %q", qname)
	}
	return def, nil
}
