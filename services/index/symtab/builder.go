// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symtab

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

var tracer = otel.Tracer("codestory.index.symtab")

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// WorkerCount is the number of parallel extraction workers.
	// Default: runtime.NumCPU().
	WorkerCount int

	// Progress is called after each file is extracted. May be nil.
	Progress func(filesDone, filesTotal int)
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithWorkerCount sets the number of parallel extraction workers.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// WithProgress sets the per-file progress callback.
func WithProgress(fn func(filesDone, filesTotal int)) BuilderOption {
	return func(o *BuilderOptions) {
		o.Progress = fn
	}
}

// BuildStats summarizes one extraction pass.
type BuildStats struct {
	// FilesProcessed is the number of files merged into the table.
	FilesProcessed int

	// FilesFailed is the number of files rejected as malformed.
	FilesFailed int

	// Definitions is the number of definitions in the merged table.
	Definitions int

	// Duplicates is the number of duplicate-definition warnings.
	Duplicates int
}

// Builder extracts definitions and scopes from scope trees and merges
// them into a Table.
//
// Thread Safety:
//
//	Builder is stateless and safe for concurrent use; each Build call
//	operates on its own table.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := BuilderOptions{WorkerCount: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.WorkerCount <= 0 {
		options.WorkerCount = runtime.NumCPU()
	}
	return &Builder{options: options}
}

// Build extracts every file in parallel and returns the frozen table.
//
// Description:
//
//	Extraction is embarrassingly parallel: each file produces an
//	independent partial result, and merging is append-only under the
//	table's lock. A malformed file is dropped with a diagnostic; all
//	other files proceed. The returned table is frozen: later stages
//	may treat it as an immutable snapshot.
//
// Inputs:
//   - ctx: Cancellation is cooperative at file granularity.
//   - files: Parsed scope trees. Nil entries are rejected per file.
//   - diags: Accumulator for malformed-input and duplicate warnings.
//
// Outputs:
//   - *Table: The frozen merged table. Never nil.
//   - BuildStats: Counts for the pass.
//   - error: Non-nil only when ctx is cancelled.
func (b *Builder) Build(ctx context.Context, files []*scopetree.File, diags *diag.List) (*Table, BuildStats, error) {
	ctx, span := tracer.Start(ctx, "symtab.Builder.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("files.count", len(files)))

	table := NewTable()
	var stats BuildStats
	var mu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.options.WorkerCount)

	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := fmt.Sprintf("file[%d]", i)
			if f != nil {
				path = f.Path
			}
			if err := f.Validate(); err != nil {
				diags.Addf(diag.CodeMalformedInput, diag.SeverityError, path, 0, "%v", err)
				mu.Lock()
				stats.FilesFailed++
				mu.Unlock()
				return nil
			}

			dups := b.extractFile(f, table, diags)

			mu.Lock()
			stats.FilesProcessed++
			stats.Duplicates += dups
			done++
			n := done
			mu.Unlock()
			if b.options.Progress != nil {
				b.options.Progress(n, len(files))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Cancelled mid-build: the table is incomplete and must not be
		// frozen as an authoritative snapshot.
		return table, stats, err
	}

	table.Freeze()
	stats.Definitions = table.Len()

	span.SetAttributes(
		attribute.Int("definitions.count", stats.Definitions),
		attribute.Int("files.failed", stats.FilesFailed),
	)
	slog.Debug("symbol table built",
		slog.Int("files", stats.FilesProcessed),
		slog.Int("failed", stats.FilesFailed),
		slog.Int("definitions", stats.Definitions),
	)
	return table, stats, nil
}

// extractFile walks one validated scope tree and merges its
// definitions. Returns the number of duplicate warnings raised.
func (b *Builder) extractFile(f *scopetree.File, table *Table, diags *diag.List) int {
	_ = table.addFileMeta(f)

	moduleQName := f.Module
	if moduleQName == "" {
		moduleQName = f.Path
	}
	_ = table.addScope(&Scope{
		ID:            f.Path,
		Kind:          ScopeKindModule,
		FilePath:      f.Path,
		QualifiedName: moduleQName,
	})

	w := &fileWalker{file: f, table: table, diags: diags}
	for _, d := range f.Decls {
		w.walkDecl(d, moduleQName, f.Path, "")
	}
	w.walkStmts(f.Stmts, moduleQName, f.Path)
	return w.duplicates
}

// fileWalker carries per-file extraction state.
type fileWalker struct {
	file       *scopetree.File
	table      *Table
	diags      *diag.List
	duplicates int
}

// walkDecl extracts one declaration and recurses into its body.
//
// parentQName is the enclosing qualified name, parentScope the
// enclosing scope ID, ownerClass the qualified name of the enclosing
// class ("" outside class bodies).
func (w *fileWalker) walkDecl(d *scopetree.Decl, parentQName, parentScope, ownerClass string) {
	def := &Definition{
		ID:            scopetree.GenerateID(w.file.Path, d.Loc.Line, d.Name),
		Name:          d.Name,
		QualifiedName: parentQName + "." + d.Name,
		Kind:          defKindFor(d, ownerClass),
		FilePath:      w.file.Path,
		Loc:           d.Loc,
		ScopeID:       parentScope,
		OwnerClass:    ownerClass,
		Abstract:      d.Abstract,
		Decorators:    d.Decorators,
		Params:        d.Params,
		Arity:         len(d.Params),
		Async:         d.Async,
		Extends:       d.Extends,
		Version:       w.file.Version,
	}

	displaced, err := w.table.addDefinition(def)
	if err != nil {
		// Only ErrFrozen reaches here, which would be a pipeline
		// ordering bug; surface it loudly in logs rather than drop it.
		slog.Error("definition rejected", slog.String("id", def.ID), slog.Any("error", err))
		return
	}
	if displaced != nil {
		w.duplicates++
		w.diags.Addf(diag.CodeDuplicateDefinition, diag.SeverityWarning, w.file.Path, d.Loc.Line,
			"duplicate definition of %q; keeping most recent declaration", def.QualifiedName)
	}

	if d.Body == nil {
		return
	}

	scopeKind := ScopeKindFunction
	childOwner := ownerClass
	if d.Kind == scopetree.DeclKindClass {
		scopeKind = ScopeKindClass
		childOwner = def.QualifiedName
	} else {
		// Function bodies do not propagate class ownership: a function
		// nested in a method is not itself a member.
		childOwner = ""
	}
	_ = w.table.addScope(&Scope{
		ID:            def.ID,
		Kind:          scopeKind,
		ParentID:      parentScope,
		FilePath:      w.file.Path,
		QualifiedName: def.QualifiedName,
		OwnerDefID:    def.ID,
	})

	for _, child := range d.Body.Decls {
		w.walkDecl(child, def.QualifiedName, def.ID, childOwner)
	}
	w.walkStmtsIn(d.Body.Stmts, def.QualifiedName, def.ID)
}

// walkStmts extracts lambda definitions from module-scope statements.
func (w *fileWalker) walkStmts(stmts []*scopetree.Stmt, parentQName, parentScope string) {
	w.walkStmtsIn(stmts, parentQName, parentScope)
}

// walkStmtsIn extracts anonymous function literals bound by
// assignment. The literal becomes an ordinary definition resolvable
// through its binding.
func (w *fileWalker) walkStmtsIn(stmts []*scopetree.Stmt, parentQName, parentScope string) {
	for _, s := range stmts {
		if s.Kind != scopetree.StmtKindAssign || s.Value == nil {
			continue
		}
		if s.Value.Kind != scopetree.ExprKindLambda || s.Value.Lambda == nil {
			continue
		}
		w.walkDecl(s.Value.Lambda, parentQName, parentScope, "")
	}
}

// defKindFor maps a declaration to its definition kind. Functions
// declared directly in a class body are methods regardless of how the
// front-end tagged them.
func defKindFor(d *scopetree.Decl, ownerClass string) DefKind {
	switch d.Kind {
	case scopetree.DeclKindClass:
		return DefKindClass
	case scopetree.DeclKindMethod:
		return DefKindMethod
	case scopetree.DeclKindLambda:
		return DefKindLambda
	case scopetree.DeclKindVariable:
		return DefKindBoundCallable
	default:
		if ownerClass != "" {
			return DefKindMethod
		}
		return DefKindFunction
	}
}
