// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bind

import (
	"context"
	"testing"

	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/inherit"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

// shapesFile defines lib.shapes.Shape with an area method, used as the
// import target for the app fixture.
func shapesFile(t *testing.T) *scopetree.File {
	t.Helper()
	return &scopetree.File{
		Path:   "lib/shapes.py",
		Module: "lib.shapes",
		Decls: []*scopetree.Decl{
			{
				Name: "Shape",
				Kind: scopetree.DeclKindClass,
				Loc:  scopetree.Location{Line: 1},
				Body: &scopetree.Body{
					Decls: []*scopetree.Decl{
						{
							Name:   "area",
							Kind:   scopetree.DeclKindFunction,
							Loc:    scopetree.Location{Line: 2},
							Params: []scopetree.Param{{Name: "self"}},
							Body:   &scopetree.Body{},
						},
					},
				},
			},
		},
	}
}

// appFile imports lib.shapes three ways and exercises every assignment
// shape inside a single function scope.
func appFile(t *testing.T) *scopetree.File {
	t.Helper()
	return &scopetree.File{
		Path:   "app/main.py",
		Module: "app.main",
		Imports: []scopetree.Import{
			{Path: "lib.shapes", Name: "Shape", Loc: scopetree.Location{Line: 1}},
			{Path: "lib.shapes", Alias: "sh", Loc: scopetree.Location{Line: 2}},
			{Path: "external.net", Alias: "net", Loc: scopetree.Location{Line: 3}},
			{Path: "external.net", Alias: "helper", Loc: scopetree.Location{Line: 4}},
		},
		Decls: []*scopetree.Decl{
			{
				Name: "build",
				Kind: scopetree.DeclKindFunction,
				Loc:  scopetree.Location{Line: 6},
				Params: []scopetree.Param{
					{Name: "s", Type: "Shape"},
					{Name: "n"},
				},
				Body: &scopetree.Body{
					Stmts: []*scopetree.Stmt{
						{
							Kind:   scopetree.StmtKindAssign,
							Loc:    scopetree.Location{Line: 7},
							Target: "x",
							Value:  &scopetree.Expr{Kind: scopetree.ExprKindConstructorCall, Name: "Shape"},
						},
						{
							Kind:   scopetree.StmtKindAssign,
							Loc:    scopetree.Location{Line: 8},
							Target: "y",
							Value:  &scopetree.Expr{Kind: scopetree.ExprKindNameRef, Name: "x"},
						},
						{
							Kind:   scopetree.StmtKindAssign,
							Loc:    scopetree.Location{Line: 9},
							Target: "f",
							Value: &scopetree.Expr{
								Kind: scopetree.ExprKindLambda,
								Lambda: &scopetree.Decl{
									Name: "<lambda:9:4>",
									Kind: scopetree.DeclKindLambda,
									Loc:  scopetree.Location{Line: 9},
								},
							},
						},
						{
							Kind:   scopetree.StmtKindAssign,
							Loc:    scopetree.Location{Line: 10},
							Target: "z",
							Value:  &scopetree.Expr{Kind: scopetree.ExprKindOpaque},
						},
						{
							Kind:   scopetree.StmtKindAssign,
							Loc:    scopetree.Location{Line: 11},
							Target: "x",
							Value:  &scopetree.Expr{Kind: scopetree.ExprKindOpaque},
						},
					},
				},
			},
			// Shadows the "helper" import alias.
			{
				Name: "helper",
				Kind: scopetree.DeclKindFunction,
				Loc:  scopetree.Location{Line: 14},
				Body: &scopetree.Body{},
			},
		},
	}
}

func bindFixture(t *testing.T) (*Resolver, *FileBindings) {
	t.Helper()
	diags := diag.NewList()
	files := []*scopetree.File{shapesFile(t), appFile(t)}
	table, _, err := symtab.NewBuilder().Build(context.Background(), files, diags)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	hier := inherit.Build(context.Background(), table, diags)
	r := NewResolver(table, hier)
	return r, r.File(context.Background(), files[1])
}

func TestFile_ImportBindings(t *testing.T) {
	_, fb := bindFixture(t)

	shape := fb.Lookup("app/main.py", "Shape")
	if shape == nil {
		t.Fatal("from-import not bound")
	}
	if shape.Kind != TargetDefinition || shape.Def == nil {
		t.Fatalf("from-import of an indexed class should bind the definition, got %+v", shape)
	}
	if shape.Def.QualifiedName != "lib.shapes.Shape" {
		t.Errorf("unexpected qualified name %q", shape.Def.QualifiedName)
	}

	mod := fb.Lookup("app/main.py", "sh")
	if mod == nil {
		t.Fatal("module alias not bound")
	}
	if mod.Kind != TargetAlias || mod.Alias != "lib.shapes" {
		t.Errorf("module alias should bind as alias to the module path, got %+v", mod)
	}

	ext := fb.Lookup("app/main.py", "net")
	if ext == nil || ext.Kind != TargetAlias || ext.Alias != "external.net" {
		t.Errorf("external import should bind as alias, got %+v", ext)
	}
}

func TestFile_DeclarationShadowsImport(t *testing.T) {
	_, fb := bindFixture(t)

	b := fb.Lookup("app/main.py", "helper")
	if b == nil {
		t.Fatal("helper not bound")
	}
	if b.Kind != TargetDefinition || b.Def == nil || b.Def.QualifiedName != "app.main.helper" {
		t.Errorf("local declaration should shadow the import alias, got %+v", b)
	}
}

func TestFile_ParamAnnotations(t *testing.T) {
	_, fb := bindFixture(t)
	scope := scopetree.GenerateID("app/main.py", 6, "build")

	s := fb.Lookup(scope, "s")
	if s == nil || !s.Param {
		t.Fatalf("annotated parameter not bound: %+v", s)
	}
	if s.DeclaredType != "lib.shapes.Shape" {
		t.Errorf("annotation should resolve through the import table, got %q", s.DeclaredType)
	}

	n := fb.Lookup(scope, "n")
	if n == nil || !n.Param {
		t.Fatalf("parameter not bound: %+v", n)
	}
	if n.DeclaredType != "" {
		t.Errorf("unannotated parameter carries declared type %q", n.DeclaredType)
	}
}

func TestFile_AssignmentBindings(t *testing.T) {
	_, fb := bindFixture(t)
	scope := scopetree.GenerateID("app/main.py", 6, "build")

	// x was first a constructor call, then reassigned to an opaque
	// value; last write wins.
	x := fb.Lookup(scope, "x")
	if x == nil || !x.Local {
		t.Fatalf("x not bound as local: %+v", x)
	}
	if x.DeclaredType != "" {
		t.Errorf("reassignment should clear the declared type, got %q", x.DeclaredType)
	}

	// y copied x before the reassignment, but bindings hold the final
	// state of each name, so y propagated from the constructor binding.
	y := fb.Lookup(scope, "y")
	if y == nil {
		t.Fatal("y not bound")
	}
	if y.DeclaredType != "lib.shapes.Shape" {
		t.Errorf("name-ref assignment should propagate the declared type, got %q", y.DeclaredType)
	}

	f := fb.Lookup(scope, "f")
	if f == nil {
		t.Fatal("f not bound")
	}
	if f.Kind != TargetDefinition || f.Def == nil || f.Def.Kind != symtab.DefKindLambda {
		t.Errorf("lambda assignment should bind the lambda definition, got %+v", f)
	}

	z := fb.Lookup(scope, "z")
	if z == nil || z.Kind != TargetUnresolved || z.DeclaredType != "" {
		t.Errorf("opaque assignment should bind unresolved with no type, got %+v", z)
	}
}

func TestLookup_WalksToModuleScope(t *testing.T) {
	_, fb := bindFixture(t)
	scope := scopetree.GenerateID("app/main.py", 6, "build")

	if b := fb.Lookup(scope, "Shape"); b == nil || b.Kind != TargetDefinition {
		t.Errorf("function scope should see module-level imports, got %+v", b)
	}
	if b := fb.Lookup(scope, "no_such_name"); b != nil {
		t.Errorf("unbound name resolved to %+v", b)
	}
}

func TestAttribute(t *testing.T) {
	r, fb := bindFixture(t)
	scope := scopetree.GenerateID("app/main.py", 6, "build")

	t.Run("typed receiver", func(t *testing.T) {
		b := r.Attribute(fb, scope, "s", "area")
		if b.Kind != TargetDefinition || b.Def == nil || b.Def.QualifiedName != "lib.shapes.Shape.area" {
			t.Errorf("member lookup on declared type failed: %+v", b)
		}
	})

	t.Run("typed receiver missing member", func(t *testing.T) {
		b := r.Attribute(fb, scope, "s", "perimeter")
		if b.Kind != TargetUnresolved {
			t.Errorf("missing member should be unresolved, got %+v", b)
		}
	})

	t.Run("class receiver", func(t *testing.T) {
		b := r.Attribute(fb, scope, "Shape", "area")
		if b.Kind != TargetDefinition || b.Def == nil || b.Def.QualifiedName != "lib.shapes.Shape.area" {
			t.Errorf("static member lookup on class failed: %+v", b)
		}
	})

	t.Run("module alias receiver", func(t *testing.T) {
		b := r.Attribute(fb, scope, "sh", "Shape")
		if b.Kind != TargetDefinition || b.Def == nil || b.Def.QualifiedName != "lib.shapes.Shape" {
			t.Errorf("alias attribute should resolve to the indexed class, got %+v", b)
		}
	})

	t.Run("external alias receiver", func(t *testing.T) {
		b := r.Attribute(fb, scope, "net", "get")
		if b.Kind != TargetExternal || b.Alias != "external.net.get" {
			t.Errorf("external member should keep the qualified name, got %+v", b)
		}
	})

	t.Run("unknown receiver", func(t *testing.T) {
		b := r.Attribute(fb, scope, "nope", "anything")
		if b == nil || b.Kind != TargetUnresolved {
			t.Errorf("unknown receiver should yield an unresolved binding, got %+v", b)
		}
	})
}

func TestQualifyName(t *testing.T) {
	r, _ := bindFixture(t)

	if got := r.QualifyName("app/main.py", "net.get"); got != "external.net.get" {
		t.Errorf("aliased dotted name: got %q", got)
	}
	if got := r.QualifyName("app/main.py", "os.path.join"); got != "os.path.join" {
		t.Errorf("unmatched dotted name should pass through, got %q", got)
	}
	if got := r.QualifyName("app/main.py", "bare"); got != "" {
		t.Errorf("bare unknown name should not qualify, got %q", got)
	}
}
