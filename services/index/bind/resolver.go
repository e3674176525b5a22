// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bind

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TheGreenCedar/CodeStory/services/index/inherit"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

var tracer = otel.Tracer("codestory.index.bind")

// Binding is the resolved meaning of a name within a scope.
type Binding struct {
	// Name is the bound name.
	Name string

	// ScopeID is the owning scope.
	ScopeID string

	// Kind identifies the resolution target.
	Kind TargetKind

	// Def is the indexed definition for TargetDefinition.
	Def *symtab.Definition

	// Alias is the underlying qualified name for TargetAlias and
	// TargetExternal bindings that came through an import.
	Alias string

	// DeclaredType is the statically-known qualified class name of the
	// bound value, from an annotation, a tracked constructor call, or
	// assignment propagation. Empty when unknown.
	DeclaredType string

	// Param marks parameter bindings.
	Param bool

	// Local marks bindings introduced by assignment inside the scope.
	Local bool
}

// Resolver resolves names and attribute accesses against the frozen
// table and inheritance snapshot.
//
// Thread Safety:
//
//	Resolver is stateless beyond the immutable snapshots it holds;
//	it is safe for concurrent use across files.
type Resolver struct {
	table *symtab.Table
	hier  *inherit.Hierarchy
}

// NewResolver creates a Resolver over frozen snapshots.
func NewResolver(table *symtab.Table, hier *inherit.Hierarchy) *Resolver {
	return &Resolver{table: table, hier: hier}
}

// FileBindings holds the computed per-scope binding maps for one file.
//
// Bindings are computed in statement order with last-wins semantics
// for re-assignment; the map holds the final binding of each name per
// scope.
type FileBindings struct {
	// FilePath is the owning file.
	FilePath string

	resolver *Resolver
	scopes   map[string]map[string]*Binding
}

// File computes bindings for every scope in a file.
//
// Description:
//
//	Walks the scope tree top down. Each scope's map binds imports
//	first, then declarations (a declaration shadows a same-named
//	import), then assignments in evaluation order. Declared types are
//	established by parameter annotations, constructor-call
//	assignments, and name-to-name assignment propagation.
func (r *Resolver) File(ctx context.Context, f *scopetree.File) *FileBindings {
	_, span := tracer.Start(ctx, "bind.Resolver.File")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", f.Path))

	fb := &FileBindings{
		FilePath: f.Path,
		resolver: r,
		scopes:   make(map[string]map[string]*Binding),
	}

	moduleScope := fb.scope(f.Path)
	for _, imp := range f.Imports {
		local := symtab.ImportLocalName(imp)
		qname := symtab.ImportQualifiedName(imp)
		b := &Binding{Name: local, ScopeID: f.Path, Alias: qname}
		if def, ok := r.table.ByQualifiedName(qname); ok {
			b.Kind = TargetDefinition
			b.Def = def
		} else {
			b.Kind = TargetAlias
		}
		moduleScope[local] = b
	}

	for _, d := range f.Decls {
		r.bindDecl(fb, d, f.Path, f.Path)
	}
	r.bindStmts(fb, f.Stmts, f.Path, f.Path)

	span.SetAttributes(attribute.Int("scopes.count", len(fb.scopes)))
	return fb
}

// bindDecl binds one declaration into its enclosing scope and
// populates the declaration's own scope.
func (r *Resolver) bindDecl(fb *FileBindings, d *scopetree.Decl, scopeID, filePath string) {
	defID := scopetree.GenerateID(filePath, d.Loc.Line, d.Name)
	def, ok := r.table.ByID(defID)
	if !ok {
		// Displaced by a duplicate declaration; the authoritative one
		// was bound when its own declaration was walked.
		return
	}

	fb.scope(scopeID)[d.Name] = &Binding{
		Name:    d.Name,
		ScopeID: scopeID,
		Kind:    TargetDefinition,
		Def:     def,
	}

	if d.Body == nil {
		return
	}

	own := fb.scope(defID)
	for _, p := range d.Params {
		b := &Binding{Name: p.Name, ScopeID: defID, Kind: TargetUnresolved, Param: true}
		if p.Type != "" {
			if qname := r.table.ResolveClassName(filePath, p.Type); qname != "" {
				b.DeclaredType = qname
			}
		}
		own[p.Name] = b
	}

	for _, child := range d.Body.Decls {
		r.bindDecl(fb, child, defID, filePath)
	}
	r.bindStmts(fb, d.Body.Stmts, defID, filePath)
}

// bindStmts applies assignments to a scope's bindings in evaluation
// order.
func (r *Resolver) bindStmts(fb *FileBindings, stmts []*scopetree.Stmt, scopeID, filePath string) {
	scope := fb.scope(scopeID)
	for _, s := range stmts {
		if s.Kind != scopetree.StmtKindAssign {
			continue
		}
		b := &Binding{Name: s.Target, ScopeID: scopeID, Kind: TargetUnresolved, Local: true}
		if s.Value != nil {
			switch s.Value.Kind {
			case scopetree.ExprKindConstructorCall:
				if qname := r.table.ResolveClassName(filePath, s.Value.Name); qname != "" {
					b.DeclaredType = qname
				}
			case scopetree.ExprKindLambda:
				if s.Value.Lambda != nil {
					lambdaID := scopetree.GenerateID(filePath, s.Value.Lambda.Loc.Line, s.Value.Lambda.Name)
					if def, ok := r.table.ByID(lambdaID); ok {
						b.Kind = TargetDefinition
						b.Def = def
					}
					// The lambda itself was bound as a declaration; walk
					// its body so nested assignments get bindings too.
					r.bindDecl(fb, s.Value.Lambda, scopeID, filePath)
				}
			case scopetree.ExprKindNameRef:
				if src := fb.Lookup(scopeID, s.Value.Name); src != nil {
					b.Kind = src.Kind
					b.Def = src.Def
					b.Alias = src.Alias
					b.DeclaredType = src.DeclaredType
				}
			case scopetree.ExprKindAttrAccess:
				if src := r.Attribute(fb, scopeID, s.Value.Receiver, s.Value.Name); src != nil {
					b.Kind = src.Kind
					b.Def = src.Def
					b.Alias = src.Alias
				}
			}
		}
		scope[s.Target] = b
	}
}

// scope returns the binding map for a scope ID, creating it on first
// use.
func (fb *FileBindings) scope(id string) map[string]*Binding {
	m, ok := fb.scopes[id]
	if !ok {
		m = make(map[string]*Binding)
		fb.scopes[id] = m
	}
	return m
}

// Lookup resolves a name by walking the scope chain: local scope,
// enclosing function scopes, class scope, module scope (imports
// included, shadowed by declarations). Returns nil when the name is
// bound nowhere.
func (fb *FileBindings) Lookup(scopeID, name string) *Binding {
	for id := scopeID; id != ""; {
		if b, ok := fb.scopes[id][name]; ok {
			return b
		}
		sc, ok := fb.resolver.table.ScopeByID(id)
		if !ok {
			return nil
		}
		id = sc.ParentID
		if id == "" && sc.Kind != symtab.ScopeKindModule {
			// Detached scope; fall back to the module scope.
			id = fb.FilePath
			if id == sc.ID {
				return nil
			}
		}
	}
	return nil
}

// Attribute resolves `receiver.member`.
//
// Description:
//
//	The receiver's binding resolves first. A receiver with a known
//	declared type looks the member up on that class through the
//	linearization. A receiver bound to a class definition resolves the
//	member statically on that class. A receiver bound to an imported
//	module resolves `module.member` as a qualified name. Anything else
//	yields an unresolved binding with no declared type, which triggers
//	Ambiguous or Unknown handling downstream.
func (r *Resolver) Attribute(fb *FileBindings, scopeID, receiver, member string) *Binding {
	recv := fb.Lookup(scopeID, receiver)
	if recv == nil {
		return &Binding{Name: member, ScopeID: scopeID, Kind: TargetUnresolved}
	}

	if recv.DeclaredType != "" {
		if def, ok := r.hier.MemberLookup(recv.DeclaredType, member); ok {
			return &Binding{Name: member, ScopeID: scopeID, Kind: TargetDefinition, Def: def}
		}
		return &Binding{Name: member, ScopeID: scopeID, Kind: TargetUnresolved}
	}

	if recv.Kind == TargetDefinition && recv.Def != nil && recv.Def.Kind == symtab.DefKindClass {
		if def, ok := r.hier.MemberLookup(recv.Def.QualifiedName, member); ok {
			return &Binding{Name: member, ScopeID: scopeID, Kind: TargetDefinition, Def: def}
		}
		return &Binding{Name: member, ScopeID: scopeID, Kind: TargetUnresolved}
	}

	if recv.Kind == TargetAlias || (recv.Kind == TargetExternal && recv.Alias != "") {
		qname := recv.Alias + "." + member
		if def, ok := r.table.ByQualifiedName(qname); ok {
			return &Binding{Name: member, ScopeID: scopeID, Kind: TargetDefinition, Def: def}
		}
		return &Binding{Name: member, ScopeID: scopeID, Kind: TargetExternal, Alias: qname}
	}

	return &Binding{Name: member, ScopeID: scopeID, Kind: TargetUnresolved}
}

// QualifyName resolves a possibly dotted name that did not bind in the
// scope chain, using the file's import table. Returns the external
// qualified name or "".
func (r *Resolver) QualifyName(filePath, name string) string {
	if qname := r.table.ResolveImportedName(filePath, name); qname != "" {
		return qname
	}
	if strings.Contains(name, ".") {
		return name
	}
	return ""
}
