// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/TheGreenCedar/CodeStory/services/index/bind"
	"github.com/TheGreenCedar/CodeStory/services/index/callgraph"
	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/inherit"
	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

var tracer = otel.Tracer("codestory.index")

// ErrIndexNotFound is returned for unknown index IDs.
var ErrIndexNotFound = fmt.Errorf("index not found")

// ErrNoFiles is returned when a build is requested with no input
// files. This is the only whole-build failure mode; per-file problems
// become diagnostics.
var ErrNoFiles = fmt.Errorf("no scope tree files to index")

// CachedIndex is one fully built index held in memory.
//
// Description:
//
//	Everything inside is frozen after BuildIndex returns: the symbol
//	table, hierarchy, bindings, call graph and diagnostics are all
//	read-only. UpdateFiles produces a replacement rather than mutating
//	in place.
type CachedIndex struct {
	// ID identifies the index in the cache and the HTTP API.
	ID string

	// ProjectRoot is the root the scope trees were read from.
	ProjectRoot string

	// CreatedAt is when this build finished.
	CreatedAt time.Time

	Table     *symtab.Table
	Hierarchy *inherit.Hierarchy
	Graph     *callgraph.Graph

	// Bindings holds per-file binding snapshots, keyed by file path.
	Bindings map[string]*bind.FileBindings

	// Diags collects everything that went wrong without aborting.
	Diags *diag.List

	// Stats summarizes the build.
	Stats IndexStats

	// files keeps the input by path for incremental rebuilds.
	files map[string]*scopetree.File
}

// SiteAt returns the call site at an exact file position, if any.
func (ci *CachedIndex) SiteAt(filePath string, line, col int) (*resolve.CallSite, bool) {
	for _, site := range ci.Graph.Sites() {
		if site.FilePath == filePath && site.Loc.Line == line && site.Loc.Col == col {
			return site, true
		}
	}
	return nil, false
}

// SiteByID returns the call site with the given stable ID, if any.
func (ci *CachedIndex) SiteByID(id string) (*resolve.CallSite, bool) {
	return ci.Graph.SiteByID(id)
}

// ServiceOption is a functional option for configuring Service.
type ServiceOption func(*Service)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ProgressFunc receives build progress: the current phase and a
// done/total file count. Called from build goroutines; implementations
// must be safe for concurrent use.
type ProgressFunc func(phase string, done, total int)

// WithProgress installs a build progress callback.
func WithProgress(fn ProgressFunc) ServiceOption {
	return func(s *Service) {
		s.progress = fn
	}
}

// Service builds and caches call-resolution indexes.
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. Builds for
//	different projects may run in parallel.
type Service struct {
	cfg      ServiceConfig
	logger   *slog.Logger
	progress ProgressFunc

	mu      sync.RWMutex
	indexes map[string]*CachedIndex
	order   []string

	db        *badger.DB
	snapshots *callgraph.SnapshotStore
}

// NewService creates a Service.
//
// Description:
//
//	Opens the snapshot BadgerDB when cfg.SnapshotDBPath is set;
//	otherwise snapshot persistence is disabled and snapshot
//	operations report unavailability.
func NewService(cfg ServiceConfig, opts ...ServiceOption) (*Service, error) {
	if cfg.MaxCachedIndexes <= 0 {
		cfg.MaxCachedIndexes = DefaultServiceConfig().MaxCachedIndexes
	}
	s := &Service{
		cfg:     cfg,
		logger:  slog.Default(),
		indexes: make(map[string]*CachedIndex),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.SnapshotDBPath != "" {
		dbOpts := badger.DefaultOptions(cfg.SnapshotDBPath).WithLogger(nil)
		db, err := badger.Open(dbOpts)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot db at %s: %w", cfg.SnapshotDBPath, err)
		}
		store, err := callgraph.NewSnapshotStore(db, s.logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.snapshots = store
	}
	return s, nil
}

// Close releases the snapshot database, if open.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Snapshots returns the snapshot store, or nil when persistence is
// disabled.
func (s *Service) Snapshots() *callgraph.SnapshotStore {
	return s.snapshots
}

// BuildIndex runs the full pipeline over a set of scope tree files and
// caches the result.
//
// Description:
//
//	Phases run in order with a freeze barrier between each: symbol
//	table (parallel per file), inheritance hierarchy with override
//	index, then per-file binding and call-site resolution (parallel),
//	then call graph assembly. Per-file failures degrade to
//	diagnostics; only an empty input fails the build.
func (s *Service) BuildIndex(ctx context.Context, projectRoot string, files []*scopetree.File) (*CachedIndex, error) {
	ctx, span := tracer.Start(ctx, "index.Service.BuildIndex")
	defer span.End()
	span.SetAttributes(
		attribute.String("project.root", projectRoot),
		attribute.Int("files.count", len(files)),
	)

	ci, err := s.build(ctx, projectRoot, files)
	recordBuild(ci.statsOrZero(), err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.indexes[ci.ID] = ci
	s.order = append(s.order, ci.ID)
	for len(s.order) > s.cfg.MaxCachedIndexes {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.indexes, evicted)
		s.logger.Info("evicted cached index", slog.String("index_id", evicted))
	}
	s.mu.Unlock()

	s.logger.Info("index built",
		slog.String("index_id", ci.ID),
		slog.String("project_root", projectRoot),
		slog.Int("definitions", ci.Stats.Definitions),
		slog.Int("call_sites", ci.Stats.CallSites),
		slog.Int("edges", ci.Stats.Edges),
		slog.Int("warnings", ci.Stats.Warnings),
		slog.Int64("duration_ms", ci.Stats.DurationMillis),
	)
	return ci, nil
}

func (ci *CachedIndex) statsOrZero() IndexStats {
	if ci == nil {
		return IndexStats{}
	}
	return ci.Stats
}

// build runs the pipeline without touching the cache.
func (s *Service) build(ctx context.Context, projectRoot string, files []*scopetree.File) (*CachedIndex, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	start := time.Now()
	diags := diag.NewList()

	builder := symtab.NewBuilder(
		symtab.WithWorkerCount(s.cfg.WorkerCount),
		symtab.WithProgress(func(done, total int) {
			s.reportProgress("extract", done, total)
		}),
	)
	table, buildStats, err := builder.Build(ctx, files, diags)
	if err != nil {
		return nil, fmt.Errorf("building symbol table: %w", err)
	}

	hier := inherit.Build(ctx, table, diags)
	binder := bind.NewResolver(table, hier)
	resolver := resolve.NewResolver(table, hier, binder, resolve.WithPolicy(s.cfg.Policy))

	bindings := make(map[string]*bind.FileBindings, len(files))
	siteLists := make([][]*resolve.CallSite, len(files))
	var mu sync.Mutex
	var resolved atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(s.cfg.WorkerCount))
	for i, f := range files {
		g.Go(func() error {
			defer func() {
				s.reportProgress("resolve", int(resolved.Add(1)), len(files))
			}()
			if err := f.Validate(); err != nil {
				// Already reported by the symbol table phase.
				return nil
			}
			fileDiags := diag.NewList()
			fb := binder.File(gctx, f)
			sites := resolver.File(gctx, f, fb, fileDiags)

			mu.Lock()
			bindings[f.Path] = fb
			siteLists[i] = sites
			diags.Merge(fileDiags)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolving call sites: %w", err)
	}

	graph := callgraph.NewGraph(projectRoot)
	for _, def := range table.All() {
		if err := graph.AddNode(def); err != nil {
			return nil, fmt.Errorf("adding graph node: %w", err)
		}
	}

	stats := IndexStats{
		FilesProcessed: buildStats.FilesProcessed,
		FilesFailed:    buildStats.FilesFailed,
		Definitions:    buildStats.Definitions,
		Duplicates:     buildStats.Duplicates,
	}
	for _, qname := range hier.Classes() {
		stats.Classes++
		if entity, ok := hier.Class(qname); ok && entity.Cyclic {
			stats.CyclicClasses++
		}
	}
	for _, sites := range siteLists {
		for _, site := range sites {
			if err := graph.AddSite(site); err != nil {
				return nil, fmt.Errorf("adding graph edge: %w", err)
			}
			stats.tally(site)
			recordSite(site)
		}
	}
	graph.Freeze()
	stats.Edges = graph.EdgeCount()
	stats.tallyDiags(diags)
	stats.DurationMillis = time.Since(start).Milliseconds()

	fileMap := make(map[string]*scopetree.File, len(files))
	for _, f := range files {
		fileMap[f.Path] = f
	}

	return &CachedIndex{
		ID:          uuid.NewString(),
		ProjectRoot: projectRoot,
		CreatedAt:   time.Now().UTC(),
		Table:       table,
		Hierarchy:   hier,
		Graph:       graph,
		Bindings:    bindings,
		Diags:       diags,
		Stats:       stats,
		files:       fileMap,
	}, nil
}

// Index returns a cached index by ID.
func (s *Service) Index(id string) (*CachedIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.indexes[id]
	if !ok {
		return nil, ErrIndexNotFound
	}
	return ci, nil
}

// FirstIndex returns the oldest cached index, or nil when the cache is
// empty. Convenience for single-project deployments.
func (s *Service) FirstIndex() *CachedIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil
	}
	return s.indexes[s.order[0]]
}

// ListIndexes returns the cached indexes, oldest first.
func (s *Service) ListIndexes() []*CachedIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CachedIndex, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.indexes[id])
	}
	return out
}

// DropIndex removes an index from the cache.
func (s *Service) DropIndex(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[id]; !ok {
		return ErrIndexNotFound
	}
	delete(s.indexes, id)
	for i, cur := range s.order {
		if cur == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateFiles rebuilds an index with changed scope tree files.
//
// Description:
//
//	Version stamps gate the merge: a changed file replaces the cached
//	one only when its Version is strictly newer, so stale re-deliveries
//	are ignored. The rebuilt index keeps the same ID and replaces the
//	cache entry atomically.
func (s *Service) UpdateFiles(ctx context.Context, indexID string, changed []*scopetree.File) (*CachedIndex, error) {
	ctx, span := tracer.Start(ctx, "index.Service.UpdateFiles")
	defer span.End()
	span.SetAttributes(
		attribute.String("index.id", indexID),
		attribute.Int("files.changed", len(changed)),
	)

	old, err := s.Index(indexID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*scopetree.File, len(old.files)+len(changed))
	for path, f := range old.files {
		merged[path] = f
	}
	applied := 0
	for _, f := range changed {
		if f == nil || f.Path == "" {
			continue
		}
		if prev, ok := merged[f.Path]; ok && prev.Version >= f.Version {
			s.logger.Debug("skipping stale file update",
				slog.String("path", f.Path),
				slog.Int64("version", f.Version),
				slog.Int64("cached_version", prev.Version),
			)
			continue
		}
		merged[f.Path] = f
		applied++
	}
	if applied == 0 {
		return old, nil
	}

	files := make([]*scopetree.File, 0, len(merged))
	for _, f := range merged {
		files = append(files, f)
	}

	ci, err := s.build(ctx, old.ProjectRoot, files)
	recordBuild(ci.statsOrZero(), err)
	if err != nil {
		return nil, err
	}
	ci.ID = indexID

	s.mu.Lock()
	s.indexes[indexID] = ci
	s.mu.Unlock()

	s.logger.Info("index rebuilt",
		slog.String("index_id", indexID),
		slog.Int("files_applied", applied),
		slog.Int("definitions", ci.Stats.Definitions),
	)
	return ci, nil
}

func (s *Service) reportProgress(phase string, done, total int) {
	if s.progress != nil {
		s.progress(phase, done, total)
	}
}

func workerLimit(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
