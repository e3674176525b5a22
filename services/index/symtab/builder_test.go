// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symtab

import (
	"context"
	"testing"

	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

// testFile builds a scope tree for a module with a class, methods and a
// free function.
func testFile(t *testing.T) *scopetree.File {
	t.Helper()
	return &scopetree.File{
		Path:   "app/worker.py",
		Module: "app.worker",
		Decls: []*scopetree.Decl{
			{
				Name: "Worker",
				Kind: scopetree.DeclKindClass,
				Loc:  scopetree.Location{Line: 1},
				Body: &scopetree.Body{
					Decls: []*scopetree.Decl{
						{
							Name:   "run",
							Kind:   scopetree.DeclKindFunction,
							Loc:    scopetree.Location{Line: 2},
							Params: []scopetree.Param{{Name: "self"}, {Name: "job"}},
							Body:   &scopetree.Body{},
						},
						{
							Name:     "stop",
							Kind:     scopetree.DeclKindFunction,
							Loc:      scopetree.Location{Line: 5},
							Abstract: true,
						},
					},
				},
			},
			{
				Name: "spawn",
				Kind: scopetree.DeclKindFunction,
				Loc:  scopetree.Location{Line: 9},
				Body: &scopetree.Body{
					Stmts: []*scopetree.Stmt{
						{
							Kind:   scopetree.StmtKindAssign,
							Loc:    scopetree.Location{Line: 10},
							Target: "cb",
							Value: &scopetree.Expr{
								Kind: scopetree.ExprKindLambda,
								Lambda: &scopetree.Decl{
									Name: "cb",
									Kind: scopetree.DeclKindLambda,
									Loc:  scopetree.Location{Line: 10},
								},
							},
						},
					},
				},
			},
		},
	}
}

func buildTable(t *testing.T, files ...*scopetree.File) (*Table, BuildStats, *diag.List) {
	t.Helper()
	diags := diag.NewList()
	table, stats, err := NewBuilder(WithWorkerCount(2)).Build(context.Background(), files, diags)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	return table, stats, diags
}

func TestBuilder_QualifiedNamesAndKinds(t *testing.T) {
	table, stats, _ := buildTable(t, testFile(t))

	if stats.FilesProcessed != 1 || stats.FilesFailed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	cls, ok := table.ByQualifiedName("app.worker.Worker")
	if !ok {
		t.Fatal("class not indexed")
	}
	if cls.Kind != DefKindClass {
		t.Errorf("expected class kind, got %v", cls.Kind)
	}

	run, ok := table.ByQualifiedName("app.worker.Worker.run")
	if !ok {
		t.Fatal("method not indexed")
	}
	if run.Kind != DefKindMethod {
		t.Errorf("function in class body should be a method, got %v", run.Kind)
	}
	if run.OwnerClass != "app.worker.Worker" {
		t.Errorf("unexpected owner class %q", run.OwnerClass)
	}
	if run.Arity != 2 {
		t.Errorf("expected arity 2, got %d", run.Arity)
	}

	stop, ok := table.ByQualifiedName("app.worker.Worker.stop")
	if !ok {
		t.Fatal("abstract method not indexed")
	}
	if !stop.Abstract {
		t.Error("abstract flag lost")
	}

	spawn, ok := table.ByQualifiedName("app.worker.spawn")
	if !ok {
		t.Fatal("free function not indexed")
	}
	if spawn.OwnerClass != "" {
		t.Errorf("free function should have no owner class, got %q", spawn.OwnerClass)
	}

	lambda, ok := table.ByQualifiedName("app.worker.spawn.cb")
	if !ok {
		t.Fatal("assigned lambda not indexed")
	}
	if lambda.Kind != DefKindLambda {
		t.Errorf("expected lambda kind, got %v", lambda.Kind)
	}
}

func TestBuilder_ScopeChain(t *testing.T) {
	table, _, _ := buildTable(t, testFile(t))

	run, _ := table.ByQualifiedName("app.worker.Worker.run")
	scope, ok := table.ScopeByID(run.ScopeID)
	if !ok {
		t.Fatal("method's enclosing scope missing")
	}
	if scope.Kind != ScopeKindClass {
		t.Errorf("expected class scope, got %v", scope.Kind)
	}
	parent, ok := table.ScopeByID(scope.ParentID)
	if !ok {
		t.Fatal("class scope has no parent")
	}
	if parent.Kind != ScopeKindModule || parent.ID != "app/worker.py" {
		t.Errorf("expected module scope at file path, got %+v", parent)
	}
}

func TestBuilder_MalformedFileIsIsolated(t *testing.T) {
	bad := &scopetree.File{Path: "app/broken.py", Decls: []*scopetree.Decl{nil}}
	table, stats, diags := buildTable(t, testFile(t), bad)

	if stats.FilesProcessed != 1 || stats.FilesFailed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if _, ok := table.ByQualifiedName("app.worker.Worker"); !ok {
		t.Error("healthy file dropped alongside the malformed one")
	}
	if diags.CountBySeverity(diag.SeverityError) != 1 {
		t.Errorf("expected one error diagnostic, got %d", diags.CountBySeverity(diag.SeverityError))
	}
}

func TestBuilder_DuplicateKeepsNewest(t *testing.T) {
	f := &scopetree.File{
		Path:   "app/dup.py",
		Module: "app.dup",
		Decls: []*scopetree.Decl{
			{Name: "init", Kind: scopetree.DeclKindFunction, Loc: scopetree.Location{Line: 2}},
			{Name: "init", Kind: scopetree.DeclKindFunction, Loc: scopetree.Location{Line: 8}},
		},
	}
	table, stats, diags := buildTable(t, f)

	if stats.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	if diags.CountBySeverity(diag.SeverityWarning) != 1 {
		t.Errorf("expected a duplicate warning")
	}
	def, ok := table.ByQualifiedName("app.dup.init")
	if !ok {
		t.Fatal("definition missing after duplicate resolution")
	}
	if def.Loc.Line != 8 {
		t.Errorf("expected later declaration to win, got line %d", def.Loc.Line)
	}
	if got := len(table.ByName("init")); got != 1 {
		t.Errorf("displaced duplicate still indexed by name: %d entries", got)
	}
}

func TestBuilder_Determinism(t *testing.T) {
	f := testFile(t)
	first, _, _ := buildTable(t, f)
	second, _, _ := buildTable(t, f)

	a, b := first.All(), second.All()
	if len(a) != len(b) {
		t.Fatalf("definition counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("order differs at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestTable_FrozenRejectsWrites(t *testing.T) {
	table, _, _ := buildTable(t, testFile(t))
	_, err := table.addDefinition(&Definition{ID: "x:1:y", Name: "y", QualifiedName: "x.y"})
	if err != ErrFrozen {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
}

func TestImports_Resolution(t *testing.T) {
	lib := &scopetree.File{
		Path:   "lib/shapes.py",
		Module: "lib.shapes",
		Decls: []*scopetree.Decl{
			{Name: "Shape", Kind: scopetree.DeclKindClass, Loc: scopetree.Location{Line: 1}, Body: &scopetree.Body{}},
		},
	}
	user := &scopetree.File{
		Path:   "app/draw.py",
		Module: "app.draw",
		Imports: []scopetree.Import{
			{Path: "lib.shapes", Name: "Shape", Loc: scopetree.Location{Line: 1}},
			{Path: "lib.shapes", Alias: "sh", Loc: scopetree.Location{Line: 2}},
		},
	}
	table, _, _ := buildTable(t, lib, user)

	if got := table.ResolveImportedName("app/draw.py", "Shape"); got != "lib.shapes.Shape" {
		t.Errorf("from-import resolution: got %q", got)
	}
	if got := table.ResolveImportedName("app/draw.py", "sh.Shape"); got != "lib.shapes.Shape" {
		t.Errorf("alias resolution: got %q", got)
	}
	if got := table.ResolveClassName("app/draw.py", "Shape"); got != "lib.shapes.Shape" {
		t.Errorf("class resolution through import: got %q", got)
	}
	if got := table.ResolveClassName("app/draw.py", "Missing"); got != "" {
		t.Errorf("unknown class should not resolve, got %q", got)
	}
}
