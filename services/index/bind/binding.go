// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bind resolves name references and attribute accesses to
// bindings against the frozen symbol table and inheritance snapshot.
//
// Binding resolution is a pure function of (scope, name): it holds no
// mutable global state, so per-file resolution runs concurrently
// against the shared snapshots with no locking.
package bind

// TargetKind identifies what a binding resolved to.
type TargetKind int

const (
	// TargetDefinition binds to an indexed definition.
	TargetDefinition TargetKind = iota

	// TargetAlias binds to an imported qualified name that is not
	// indexed. The alias is resolved transparently: Alias always holds
	// the underlying qualified name, never the local alias.
	TargetAlias

	// TargetExternal binds to a value known to come from outside the
	// indexed codebase.
	TargetExternal

	// TargetUnresolved is a name with no binding anywhere in the scope
	// chain. Downstream this degrades confidence; it is never an error.
	TargetUnresolved
)

// String returns the string representation of the TargetKind.
func (k TargetKind) String() string {
	switch k {
	case TargetDefinition:
		return "definition"
	case TargetAlias:
		return "alias"
	case TargetExternal:
		return "external"
	case TargetUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}
