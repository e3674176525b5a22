// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

func testService(t *testing.T, cfg ServiceConfig) *Service {
	t.Helper()
	svc, err := NewService(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// serviceFile is one module with a class whose method calls a free
// function, at the given file version.
func serviceFile(t *testing.T, version int64, extraCall bool) *scopetree.File {
	t.Helper()
	stmts := []*scopetree.Stmt{
		{
			Kind: scopetree.StmtKindCall,
			Loc:  scopetree.Location{Line: 3},
			Call: &scopetree.CallExpr{Callee: "log", ArgCount: 1},
		},
	}
	if extraCall {
		stmts = append(stmts, &scopetree.Stmt{
			Kind: scopetree.StmtKindCall,
			Loc:  scopetree.Location{Line: 4},
			Call: &scopetree.CallExpr{Callee: "log", ArgCount: 1},
		})
	}
	return &scopetree.File{
		Path:    "app/svc.py",
		Module:  "app.svc",
		Version: version,
		Decls: []*scopetree.Decl{
			{
				Name: "Handler",
				Kind: scopetree.DeclKindClass,
				Loc:  scopetree.Location{Line: 1},
				Body: &scopetree.Body{Decls: []*scopetree.Decl{
					{
						Name:   "handle",
						Kind:   scopetree.DeclKindFunction,
						Loc:    scopetree.Location{Line: 2},
						Params: []scopetree.Param{{Name: "self"}, {Name: "req"}},
						Body:   &scopetree.Body{Stmts: stmts},
					},
				}},
			},
			{
				Name:   "log",
				Kind:   scopetree.DeclKindFunction,
				Loc:    scopetree.Location{Line: 7},
				Params: []scopetree.Param{{Name: "msg"}},
				Body:   &scopetree.Body{},
			},
		},
	}
}

func TestService_BuildIndex(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())

	ci, err := svc.BuildIndex(context.Background(), "/proj", []*scopetree.File{serviceFile(t, 1, false)})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if ci.ID == "" {
		t.Error("index has no ID")
	}
	if !ci.Graph.Frozen() {
		t.Error("graph not frozen after build")
	}
	if ci.Stats.FilesProcessed != 1 || ci.Stats.Definitions != 3 {
		t.Errorf("unexpected stats: %+v", ci.Stats)
	}
	if ci.Stats.Classes != 1 || ci.Stats.CallSites != 1 || ci.Stats.Edges != 1 {
		t.Errorf("unexpected graph stats: %+v", ci.Stats)
	}
	if ci.Stats.Strategies.Direct != 1 || ci.Stats.Confidence.Exact != 1 {
		t.Errorf("unexpected resolution tallies: %+v", ci.Stats)
	}
	if _, ok := ci.Bindings["app/svc.py"]; !ok {
		t.Error("per-file bindings missing")
	}

	got, err := svc.Index(ci.ID)
	if err != nil || got != ci {
		t.Errorf("Index lookup failed: %v", err)
	}
	if list := svc.ListIndexes(); len(list) != 1 || list[0] != ci {
		t.Errorf("unexpected index list: %v", list)
	}

	site, ok := ci.SiteAt("app/svc.py", 3, 0)
	if !ok {
		t.Fatal("call site not found at its position")
	}
	if site.Callee != "log" {
		t.Errorf("unexpected site %+v", site)
	}
}

func TestService_BuildIndexNoFiles(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())

	if _, err := svc.BuildIndex(context.Background(), "/proj", nil); err != ErrNoFiles {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}
}

func TestService_UpdateFiles(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())

	ci, err := svc.BuildIndex(context.Background(), "/proj", []*scopetree.File{serviceFile(t, 1, false)})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	t.Run("stale version is ignored", func(t *testing.T) {
		got, err := svc.UpdateFiles(context.Background(), ci.ID, []*scopetree.File{serviceFile(t, 1, true)})
		if err != nil {
			t.Fatalf("UpdateFiles: %v", err)
		}
		if got != ci {
			t.Error("same-version update should return the existing index unchanged")
		}
	})

	t.Run("newer version rebuilds under the same ID", func(t *testing.T) {
		got, err := svc.UpdateFiles(context.Background(), ci.ID, []*scopetree.File{serviceFile(t, 2, true)})
		if err != nil {
			t.Fatalf("UpdateFiles: %v", err)
		}
		if got == ci {
			t.Fatal("update should produce a replacement index")
		}
		if got.ID != ci.ID {
			t.Errorf("rebuilt index changed ID: %q vs %q", got.ID, ci.ID)
		}
		if got.Stats.CallSites != 2 {
			t.Errorf("rebuild did not pick up the new call, stats %+v", got.Stats)
		}
		if cur, err := svc.Index(ci.ID); err != nil || cur != got {
			t.Error("cache entry not replaced")
		}
	})

	t.Run("unknown index", func(t *testing.T) {
		if _, err := svc.UpdateFiles(context.Background(), "missing", nil); err != ErrIndexNotFound {
			t.Errorf("expected ErrIndexNotFound, got %v", err)
		}
	})
}

func TestService_CacheEviction(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxCachedIndexes = 1
	svc := testService(t, cfg)

	first, err := svc.BuildIndex(context.Background(), "/proj-a", []*scopetree.File{serviceFile(t, 1, false)})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	second, err := svc.BuildIndex(context.Background(), "/proj-b", []*scopetree.File{serviceFile(t, 1, false)})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if _, err := svc.Index(first.ID); err != ErrIndexNotFound {
		t.Errorf("oldest index should be evicted, got %v", err)
	}
	if _, err := svc.Index(second.ID); err != nil {
		t.Errorf("newest index missing: %v", err)
	}
	if got := svc.FirstIndex(); got != second {
		t.Errorf("unexpected first index %v", got)
	}
}

func TestService_BuildProgress(t *testing.T) {
	var mu sync.Mutex
	phases := make(map[string]int)
	var lastTotal int

	svc, err := NewService(DefaultServiceConfig(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithProgress(func(phase string, done, total int) {
			mu.Lock()
			phases[phase]++
			lastTotal = total
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if _, err := svc.BuildIndex(context.Background(), "/proj", []*scopetree.File{serviceFile(t, 1, false)}); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if phases["extract"] != 1 || phases["resolve"] != 1 {
		t.Errorf("expected one progress report per phase per file, got %v", phases)
	}
	if lastTotal != 1 {
		t.Errorf("progress total = %d, want 1", lastTotal)
	}
}

func TestService_DropIndex(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())

	ci, err := svc.BuildIndex(context.Background(), "/proj", []*scopetree.File{serviceFile(t, 1, false)})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if err := svc.DropIndex(ci.ID); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	if _, err := svc.Index(ci.ID); err != ErrIndexNotFound {
		t.Errorf("dropped index still cached: %v", err)
	}
	if err := svc.DropIndex(ci.ID); err != ErrIndexNotFound {
		t.Errorf("double drop should report not found, got %v", err)
	}
}
