// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symtab

import (
	"errors"
	"sort"
	"sync"

	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

// Table errors.
var (
	// ErrFrozen is returned when mutating a frozen table.
	ErrFrozen = errors.New("symtab: table is frozen")
)

// Table is the merged, cross-file symbol table.
//
// The table is populated during the parallel extraction phase, then
// frozen. Every later stage (inheritance, binding, call resolution)
// reads the frozen table; freezing is the barrier that guarantees all
// class declarations are visible before linearization runs.
//
// Thread Safety:
//
//	Safe for concurrent use. Mutation is serialized internally; after
//	Freeze the table is effectively immutable and reads take no lock
//	contention beyond an RWMutex read lock.
type Table struct {
	mu sync.RWMutex

	byID    map[string]*Definition
	byQName map[string]*Definition
	byName  map[string][]*Definition
	byFile  map[string][]*Definition
	byOwner map[string][]*Definition

	scopes      map[string]*Scope
	fileImports map[string][]scopetree.Import
	fileModule  map[string]string
	fileVersion map[string]int64

	frozen bool
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{
		byID:        make(map[string]*Definition),
		byQName:     make(map[string]*Definition),
		byName:      make(map[string][]*Definition),
		byFile:      make(map[string][]*Definition),
		byOwner:     make(map[string][]*Definition),
		scopes:      make(map[string]*Scope),
		fileImports: make(map[string][]scopetree.Import),
		fileModule:  make(map[string]string),
		fileVersion: make(map[string]int64),
	}
}

// addDefinition inserts one definition, reporting whether it displaced
// an existing definition with the same qualified name in the same
// scope. The most recent declaration wins: later line in the same
// file, or higher file version across files.
func (t *Table) addDefinition(def *Definition) (displaced *Definition, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return nil, ErrFrozen
	}

	existing, dup := t.byQName[def.QualifiedName]
	if dup && existing.ScopeID == def.ScopeID {
		if !supersedes(def, existing) {
			// Keep the existing one authoritative; still report.
			return existing, nil
		}
		t.removeLocked(existing)
		displaced = existing
	}

	t.byID[def.ID] = def
	t.byQName[def.QualifiedName] = def
	t.byName[def.Name] = append(t.byName[def.Name], def)
	t.byFile[def.FilePath] = append(t.byFile[def.FilePath], def)
	if def.OwnerClass != "" {
		t.byOwner[def.OwnerClass] = append(t.byOwner[def.OwnerClass], def)
	}
	return displaced, nil
}

// supersedes reports whether a displaces b as the authoritative
// definition for a shared qualified name.
func supersedes(a, b *Definition) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	if a.FilePath != b.FilePath {
		return a.FilePath > b.FilePath
	}
	if a.Loc.Line != b.Loc.Line {
		return a.Loc.Line > b.Loc.Line
	}
	return a.Loc.Col >= b.Loc.Col
}

// removeLocked unlinks a definition from every index. Caller holds mu.
func (t *Table) removeLocked(def *Definition) {
	delete(t.byID, def.ID)
	delete(t.byQName, def.QualifiedName)
	t.byName[def.Name] = deleteDef(t.byName[def.Name], def)
	t.byFile[def.FilePath] = deleteDef(t.byFile[def.FilePath], def)
	if def.OwnerClass != "" {
		t.byOwner[def.OwnerClass] = deleteDef(t.byOwner[def.OwnerClass], def)
	}
}

func deleteDef(defs []*Definition, target *Definition) []*Definition {
	out := defs[:0]
	for _, d := range defs {
		if d != target {
			out = append(out, d)
		}
	}
	return out
}

// addScope inserts one scope record.
func (t *Table) addScope(s *Scope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	t.scopes[s.ID] = s
	return nil
}

// addFileMeta records a file's module name, imports, and version.
func (t *Table) addFileMeta(f *scopetree.File) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	t.fileImports[f.Path] = f.Imports
	t.fileModule[f.Path] = f.Module
	t.fileVersion[f.Path] = f.Version
	return nil
}

// Freeze sorts every secondary index for deterministic output and
// marks the table immutable. Freeze is idempotent.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return
	}
	for name := range t.byName {
		sortDefs(t.byName[name])
	}
	for file := range t.byFile {
		sortDefs(t.byFile[file])
	}
	for owner := range t.byOwner {
		sortDefs(t.byOwner[owner])
	}
	t.frozen = true
}

// sortDefs orders definitions by (qualified name, line, col).
func sortDefs(defs []*Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].QualifiedName != defs[j].QualifiedName {
			return defs[i].QualifiedName < defs[j].QualifiedName
		}
		if defs[i].Loc.Line != defs[j].Loc.Line {
			return defs[i].Loc.Line < defs[j].Loc.Line
		}
		return defs[i].Loc.Col < defs[j].Loc.Col
	})
}

// Frozen reports whether the table has been frozen.
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// ByID returns the definition with the given ID.
func (t *Table) ByID(id string) (*Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.byID[id]
	return d, ok
}

// ByQualifiedName returns the authoritative definition for a qualified
// name.
func (t *Table) ByQualifiedName(qname string) (*Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.byQName[qname]
	return d, ok
}

// ByName returns every definition sharing a bare name, ordered by
// qualified name. The returned slice is shared: callers must not
// mutate it.
func (t *Table) ByName(name string) []*Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byName[name]
}

// InFile returns every definition declared in a file.
func (t *Table) InFile(path string) []*Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byFile[path]
}

// MembersOf returns the definitions directly owned by a class, ordered
// by qualified name.
func (t *Table) MembersOf(classQName string) []*Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byOwner[classQName]
}

// Classes returns every class definition, ordered by qualified name.
func (t *Table) Classes() []*Definition {
	t.mu.RLock()
	var out []*Definition
	for _, d := range t.byQName {
		if d.Kind == DefKindClass {
			out = append(out, d)
		}
	}
	t.mu.RUnlock()
	sortDefs(out)
	return out
}

// ScopeByID returns the scope with the given ID.
func (t *Table) ScopeByID(id string) (*Scope, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.scopes[id]
	return s, ok
}

// Imports returns a file's import and alias declarations.
func (t *Table) Imports(path string) []scopetree.Import {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fileImports[path]
}

// Module returns the dotted module name a file defines.
func (t *Table) Module(path string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fileModule[path]
}

// Files returns every merged file path in sorted order.
func (t *Table) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.fileModule))
	for p := range t.fileModule {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// All returns every definition sorted by (qualified name, position),
// the persisted ordering. The slice is freshly allocated.
func (t *Table) All() []*Definition {
	t.mu.RLock()
	out := make([]*Definition, 0, len(t.byID))
	for _, d := range t.byID {
		out = append(out, d)
	}
	t.mu.RUnlock()
	sortDefs(out)
	return out
}

// Len returns the number of definitions in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
