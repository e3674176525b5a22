// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package symtab builds the cross-file symbol table: the merged set of
// definitions and scopes extracted from every file's scope tree.
// Extraction is parallel per file; the merged table is frozen before
// any later stage reads it.
package symtab

import (
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

// DefKind identifies what a Definition declares.
type DefKind int

const (
	// DefKindFunction is a free function.
	DefKindFunction DefKind = iota

	// DefKindMethod is a function owned by a class.
	DefKindMethod

	// DefKindClass is a class.
	DefKindClass

	// DefKindBoundCallable is a named variable declared to hold a
	// callable value.
	DefKindBoundCallable

	// DefKindLambda is an anonymous function literal.
	DefKindLambda
)

// String returns the string representation of the DefKind.
func (k DefKind) String() string {
	switch k {
	case DefKindFunction:
		return "function"
	case DefKindMethod:
		return "method"
	case DefKindClass:
		return "class"
	case DefKindBoundCallable:
		return "bound_callable"
	case DefKindLambda:
		return "lambda"
	default:
		return "unknown"
	}
}

// Callable reports whether definitions of this kind can be call targets.
func (k DefKind) Callable() bool {
	switch k {
	case DefKindFunction, DefKindMethod, DefKindBoundCallable, DefKindLambda:
		return true
	default:
		// Classes are callable as constructors but resolve through the
		// declared-type path, not as plain call targets.
		return false
	}
}

// Definition is one named, callable or type declaration tracked by the
// index.
//
// Ownership:
//
//	Definitions are created during extraction and MUST NOT be mutated
//	after the table is frozen. Later stages hold pointers into the
//	frozen table.
type Definition struct {
	// ID is the unique identifier, scopetree.GenerateID form.
	ID string `json:"id"`

	// Name is the declared name.
	Name string `json:"name"`

	// QualifiedName is the dotted nesting path including the module,
	// e.g. "app.models.User.save".
	QualifiedName string `json:"qualified_name"`

	// Kind identifies the definition kind.
	Kind DefKind `json:"kind"`

	// FilePath is the declaring file.
	FilePath string `json:"file_path"`

	// Loc is the declaration's source position.
	Loc scopetree.Location `json:"loc"`

	// ScopeID is the declaring scope's identifier.
	ScopeID string `json:"scope_id"`

	// OwnerClass is the qualified name of the owning class, empty for
	// definitions not owned by a class.
	OwnerClass string `json:"owner_class,omitempty"`

	// Abstract marks a member with no concrete body.
	Abstract bool `json:"abstract,omitempty"`

	// Decorators is the ordered decorator-application chain, outermost
	// first. Metadata only: it never replaces the definition's
	// identity as a resolution target.
	Decorators []string `json:"decorators,omitempty"`

	// Params are the declared parameters.
	Params []scopetree.Param `json:"params,omitempty"`

	// Arity is len(Params), denormalized for the name+arity heuristic.
	Arity int `json:"arity"`

	// Async marks suspension capability, never dispatch behavior.
	Async bool `json:"async,omitempty"`

	// Extends lists superclass names in declared order. Classes only.
	// Entries are as-declared; the inheritance stage resolves them to
	// qualified names.
	Extends []string `json:"extends,omitempty"`

	// Version stamps the file version this definition came from.
	// Changing a file invalidates all definitions with older stamps.
	Version int64 `json:"version,omitempty"`
}

// ScopeKind identifies the kind of a scope.
type ScopeKind int

const (
	// ScopeKindModule is a file's top-level scope.
	ScopeKindModule ScopeKind = iota

	// ScopeKindClass is a class body.
	ScopeKindClass

	// ScopeKindFunction is a function, method, or lambda body.
	ScopeKindFunction

	// ScopeKindBlock is a nested block. Front-ends that flatten blocks
	// never emit it; it exists so the contract round-trips.
	ScopeKindBlock
)

// String returns the string representation of the ScopeKind.
func (k ScopeKind) String() string {
	switch k {
	case ScopeKindModule:
		return "module"
	case ScopeKindClass:
		return "class"
	case ScopeKindFunction:
		return "function"
	case ScopeKindBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Scope is one lexical scope in the merged table.
type Scope struct {
	// ID is the unique scope identifier. Module scopes use the file
	// path; nested scopes use their owning definition's ID.
	ID string `json:"id"`

	// Kind identifies the scope kind.
	Kind ScopeKind `json:"kind"`

	// ParentID is the enclosing scope's ID, empty for module scopes.
	ParentID string `json:"parent_id,omitempty"`

	// FilePath is the owning file.
	FilePath string `json:"file_path"`

	// QualifiedName is the dotted nesting path of the scope's owner.
	// Module scopes carry the module name.
	QualifiedName string `json:"qualified_name"`

	// OwnerDefID is the definition owning this scope, empty for module
	// scopes.
	OwnerDefID string `json:"owner_def_id,omitempty"`
}
