// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package callgraph

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err, "opening in-memory badger")
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSnapshotStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestSnapshotStore_SaveRequiresFrozenGraph(t *testing.T) {
	store := testStore(t)

	g := NewGraph("/proj")
	_, err := store.Save(context.Background(), g, "")
	assert.Error(t, err, "saving an unfrozen graph should fail")
}

func TestSnapshotStore_SaveLoadRoundtrip(t *testing.T) {
	store := testStore(t)
	g, _, _, _ := testGraph(t)

	meta, err := store.Save(context.Background(), g, "initial")
	require.NoError(t, err)

	assert.Len(t, meta.SnapshotID, 16)
	assert.Equal(t, ProjectHash("/proj"), meta.ProjectHash)
	assert.Equal(t, 3, meta.DefinitionCount)
	assert.Equal(t, 5, meta.SiteCount)
	assert.Equal(t, 4, meta.EdgeCount)
	assert.Equal(t, g.Hash(), meta.GraphHash)
	assert.Equal(t, "initial", meta.Label)
	assert.Equal(t, GraphSchemaVersion, meta.SchemaVersion)
	assert.Positive(t, meta.CompressedSize)
	assert.NotEmpty(t, meta.ContentHash)

	loaded, loadedMeta, err := store.Load(context.Background(), meta.SnapshotID)
	require.NoError(t, err)
	assert.True(t, loaded.Frozen(), "loaded graph should be frozen")
	assert.Equal(t, g.Hash(), loaded.Hash())
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())
	assert.Equal(t, g.SiteCount(), loaded.SiteCount())
	assert.Equal(t, meta.SnapshotID, loadedMeta.SnapshotID)
}

func TestSnapshotStore_LatestPointer(t *testing.T) {
	store := testStore(t)

	g1, _, _, _ := testGraph(t)
	_, err := store.Save(context.Background(), g1, "first")
	require.NoError(t, err)

	// A second build of the same project gets its own snapshot ID.
	g2, _, _, _ := testGraph(t)
	g2.BuiltAtMilli = g1.BuiltAtMilli + 5
	meta2, err := store.Save(context.Background(), g2, "second")
	require.NoError(t, err)

	_, latestMeta, err := store.LoadLatest(context.Background(), ProjectHash("/proj"))
	require.NoError(t, err)
	assert.Equal(t, meta2.SnapshotID, latestMeta.SnapshotID, "latest should point at the second snapshot")

	metas, err := store.List(context.Background(), ProjectHash("/proj"), 0)
	require.NoError(t, err)
	assert.Len(t, metas, 2)

	metas, err = store.List(context.Background(), ProjectHash("/other"), 0)
	require.NoError(t, err)
	assert.Empty(t, metas, "foreign project hash should list nothing")
}

func TestSnapshotStore_Delete(t *testing.T) {
	store := testStore(t)
	g, _, _, _ := testGraph(t)

	meta, err := store.Save(context.Background(), g, "")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), meta.SnapshotID))

	_, _, err = store.Load(context.Background(), meta.SnapshotID)
	assert.Error(t, err, "loading a deleted snapshot should fail")

	_, _, err = store.LoadLatest(context.Background(), ProjectHash("/proj"))
	assert.Error(t, err, "latest pointer should be cleared with the snapshot")

	metas, err := store.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, metas, "store should be empty after delete")
}
