// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package callgraph

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key layout for call-graph snapshots.
//
//	index:snap:{projectHash}:{snapshotID}:data → gzip(JSON(SerializableGraph))
//	index:snap:{projectHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	index:snap:{projectHash}:latest            → snapshotID
//	index:snap:rev:{snapshotID}                → projectHash
const (
	keyPrefixSnap    = "index:snap:"
	keyPrefixSnapRev = "index:snap:rev:"
	keySuffixData    = ":data"
	keySuffixMeta    = ":meta"
	keySuffixLatest  = ":latest"
)

// SnapshotMetadata describes one stored call-graph snapshot.
type SnapshotMetadata struct {
	// SnapshotID is SHA256(ProjectRoot + BuiltAtMilli)[:16].
	SnapshotID string `json:"snapshot_id"`

	// ProjectRoot is the indexed project's root path.
	ProjectRoot string `json:"project_root"`

	// ProjectHash is SHA256(ProjectRoot)[:16], the key-grouping prefix.
	ProjectHash string `json:"project_hash"`

	// GraphHash is the deterministic structural hash of the graph.
	GraphHash string `json:"graph_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// BuiltAtMilli is when the graph was frozen (Unix ms, UTC). Kept
	// out of the payload so identical builds persist byte-identically.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// CreatedAtMilli is when the snapshot was saved (Unix ms, UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// DefinitionCount, SiteCount and EdgeCount summarize the payload.
	DefinitionCount int `json:"definition_count"`
	SiteCount       int `json:"site_count"`
	EdgeCount       int `json:"edge_count"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the gzip payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is SHA256 of the compressed payload, checked on load.
	ContentHash string `json:"content_hash"`
}

// SnapshotStore persists call graphs as gzip-compressed JSON in
// BadgerDB.
//
// Thread Safety:
//
//	Safe for concurrent use; Badger handles transaction isolation.
type SnapshotStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewSnapshotStore creates a store over an opened BadgerDB. The caller
// owns the DB lifecycle.
func NewSnapshotStore(db *badger.DB, logger *slog.Logger) (*SnapshotStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &SnapshotStore{db: db, logger: logger}, nil
}

// Save persists a frozen graph and updates the project's latest
// pointer. Returns the stored metadata.
func (s *SnapshotStore) Save(ctx context.Context, g *Graph, label string) (*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("graph must not be nil")
	}
	if !g.Frozen() {
		return nil, fmt.Errorf("graph must be frozen before saving")
	}

	sg := g.ToSerializable()
	payload, err := json.Marshal(sg)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	data := compressed.Bytes()

	projectHash := ProjectHash(g.ProjectRoot)
	snapshotID := hashString(fmt.Sprintf("%s:%d", g.ProjectRoot, g.BuiltAtMilli))[:16]

	meta := &SnapshotMetadata{
		SnapshotID:      snapshotID,
		ProjectRoot:     g.ProjectRoot,
		ProjectHash:     projectHash,
		GraphHash:       sg.GraphHash,
		Label:           label,
		BuiltAtMilli:    g.BuiltAtMilli,
		CreatedAtMilli:  time.Now().UnixMilli(),
		DefinitionCount: len(sg.Definitions),
		SiteCount:       len(sg.Sites),
		EdgeCount:       len(sg.Edges),
		SchemaVersion:   sg.SchemaVersion,
		CompressedSize:  int64(len(data)),
		ContentHash:     hashBytes(data),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	keys := snapshotKeys(projectHash, snapshotID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keys.data), data); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(keys.meta), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(keys.latest), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(keys.rev), []byte(projectHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("call graph snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", g.ProjectRoot),
		slog.Int("definition_count", meta.DefinitionCount),
		slog.Int("edge_count", meta.EdgeCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a snapshot by ID and reconstructs the frozen graph.
func (s *SnapshotStore) Load(ctx context.Context, snapshotID string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}
	projectHash, err := s.projectHashFor(snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return s.loadByKeys(projectHash, snapshotID)
}

// LoadLatest loads the newest snapshot for a project hash.
func (s *SnapshotStore) LoadLatest(ctx context.Context, projectHash string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if projectHash == "" {
		return nil, nil, fmt.Errorf("project hash must not be empty")
	}

	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	var snapshotID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", projectHash, err)
	}
	return s.loadByKeys(projectHash, snapshotID)
}

// List returns snapshot metadata, newest first. An empty projectHash
// matches every project. A limit <= 0 defaults to 100.
func (s *SnapshotStore) List(ctx context.Context, projectHash string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = 100
	}

	prefix := keyPrefixSnap
	if projectHash != "" {
		prefix = keyPrefixSnap + projectHash + ":"
	}

	var results []*SnapshotMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}
			var meta SnapshotMetadata
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				s.logger.Warn("skipping corrupt snapshot metadata",
					slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot's data, metadata, reverse index entry and,
// if it was the latest, the latest pointer.
func (s *SnapshotStore) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}
	projectHash, err := s.projectHashFor(snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	keys := snapshotKeys(projectHash, snapshotID)
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{keys.data, keys.meta, keys.rev} {
			if err := txn.Delete([]byte(key)); err != nil && err != badger.ErrKeyNotFound {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}
		item, err := txn.Get([]byte(keys.latest))
		if err != nil {
			return nil
		}
		var currentLatest string
		_ = item.Value(func(val []byte) error {
			currentLatest = string(val)
			return nil
		})
		if currentLatest == snapshotID {
			if err := txn.Delete([]byte(keys.latest)); err != nil && err != badger.ErrKeyNotFound {
				return fmt.Errorf("deleting latest pointer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	s.logger.Info("call graph snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

func (s *SnapshotStore) loadByKeys(projectHash, snapshotID string) (*Graph, *SnapshotMetadata, error) {
	keys := snapshotKeys(projectHash, snapshotID)

	var data, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get([]byte(keys.data))
		if err != nil {
			return fmt.Errorf("reading data for %s: %w", snapshotID, err)
		}
		if data, err = dataItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying data for %s: %w", snapshotID, err)
		}
		metaItem, err := txn.Get([]byte(keys.meta))
		if err != nil {
			return fmt.Errorf("reading metadata for %s: %w", snapshotID, err)
		}
		if metaJSON, err = metaItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying metadata for %s: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", snapshotID, err)
	}
	if meta.ContentHash != "" && meta.ContentHash != hashBytes(data) {
		return nil, nil, fmt.Errorf("integrity check failed for %s", snapshotID)
	}

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot %s: %w", snapshotID, err)
	}
	defer gr.Close()
	payload, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed data for %s: %w", snapshotID, err)
	}

	var sg SerializableGraph
	if err := json.Unmarshal(payload, &sg); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling graph for %s: %w", snapshotID, err)
	}
	g, err := FromSerializable(&sg)
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing graph for %s: %w", snapshotID, err)
	}
	g.BuiltAtMilli = meta.BuiltAtMilli
	return g, &meta, nil
}

func (s *SnapshotStore) projectHashFor(snapshotID string) (string, error) {
	var projectHash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixSnapRev + snapshotID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			projectHash = string(val)
			return nil
		})
	})
	return projectHash, err
}

type snapKeys struct {
	data, meta, latest, rev string
}

func snapshotKeys(projectHash, snapshotID string) snapKeys {
	base := keyPrefixSnap + projectHash + ":" + snapshotID
	return snapKeys{
		data:   base + keySuffixData,
		meta:   base + keySuffixMeta,
		latest: keyPrefixSnap + projectHash + keySuffixLatest,
		rev:    keyPrefixSnapRev + snapshotID,
	}
}

// ProjectHash returns SHA256(projectRoot)[:16], the storage key prefix
// for a project.
func ProjectHash(projectRoot string) string {
	return hashString(projectRoot)[:16]
}

func hashString(v string) string {
	h := sha256.Sum256([]byte(v))
	return hex.EncodeToString(h[:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
