// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package inherit builds the class inheritance graph, the per-class
// linearized resolution order, and the override index. All three are
// computed once from a frozen symbol table and are immutable snapshots
// afterwards: queries never recompute.
package inherit

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

var tracer = otel.Tracer("codestory.index.inherit")

// ClassEntity is one class with its resolved inheritance information.
type ClassEntity struct {
	// Def is the class definition.
	Def *symtab.Definition

	// Extends holds the qualified names of superclasses resolved to
	// indexed classes, in declared order.
	Extends []string

	// ExternalBases holds extends entries that did not resolve to any
	// indexed class. They are not errors: resolution through them
	// degrades to Unknown, never a guess.
	ExternalBases []string

	// Linearization is the deterministic member-resolution order,
	// self first. Nil for cyclic classes.
	Linearization []string

	// Cyclic marks classes implicated in an extends cycle. Their
	// members resolve with Unknown dispatch.
	Cyclic bool
}

// Hierarchy is the immutable inheritance snapshot.
//
// Thread Safety:
//
//	Safe for unsynchronized concurrent reads after Build returns.
type Hierarchy struct {
	table      *symtab.Table
	classes    map[string]*ClassEntity
	subclasses map[string][]string

	// overrides maps class → member name → concrete overriding
	// definitions declared in the strict subtree below the class,
	// in subtree traversal order. Precomputed once.
	overrides map[string]map[string][]*symtab.Definition
}

// Build computes the inheritance snapshot from a frozen table.
//
// Description:
//
//	Resolves every class's extends list, detects extends cycles (DFS
//	with on-stack marking), computes a C3-style linearization for
//	every acyclic class, and precomputes the override index. Cyclic
//	classes are excluded from linearization and reported through one
//	CyclicInheritanceError per cycle; the build itself never fails.
//
// Inputs:
//   - ctx: For tracing only; Build performs no blocking work.
//   - table: The frozen symbol table. All class declarations must be
//     merged before Build runs.
//   - diags: Accumulator for cycle errors.
func Build(ctx context.Context, table *symtab.Table, diags *diag.List) *Hierarchy {
	_, span := tracer.Start(ctx, "inherit.Build")
	defer span.End()

	h := &Hierarchy{
		table:      table,
		classes:    make(map[string]*ClassEntity),
		subclasses: make(map[string][]string),
		overrides:  make(map[string]map[string][]*symtab.Definition),
	}

	classDefs := table.Classes()
	for _, def := range classDefs {
		entity := &ClassEntity{Def: def}
		for _, base := range def.Extends {
			if qname := h.resolveBaseName(def, base); qname != "" {
				entity.Extends = append(entity.Extends, qname)
			} else {
				entity.ExternalBases = append(entity.ExternalBases, base)
			}
		}
		h.classes[def.QualifiedName] = entity
	}

	// Reverse edges, childless classes included.
	for qname, entity := range h.classes {
		for _, base := range entity.Extends {
			h.subclasses[base] = append(h.subclasses[base], qname)
		}
	}
	// Subclass ordering must not depend on merge order, which varies
	// with worker scheduling. Declaration position is stable.
	for base := range h.subclasses {
		subs := h.subclasses[base]
		sort.Slice(subs, func(i, j int) bool {
			return declaredBefore(h.classes[subs[i]].Def, h.classes[subs[j]].Def)
		})
	}

	cycles := h.detectCycles()
	for _, cycle := range cycles {
		for _, qname := range cycle {
			h.classes[qname].Cyclic = true
		}
		diags.Addf(diag.CodeCyclicInheritance, diag.SeverityWarning, "", 0,
			"inheritance cycle: %s; members of these classes resolve with unknown dispatch",
			strings.Join(cycle, " -> "))
		slog.Warn("inheritance cycle detected", slog.String("classes", strings.Join(cycle, " -> ")))
	}

	for _, def := range classDefs {
		if entity := h.classes[def.QualifiedName]; !entity.Cyclic {
			h.linearize(def.QualifiedName, make(map[string]bool))
		}
	}

	h.buildOverrideIndex(classDefs)

	span.SetAttributes(
		attribute.Int("classes.count", len(classDefs)),
		attribute.Int("cycles.count", len(cycles)),
	)
	return h
}

// declaredBefore orders class definitions by declaration position,
// with qualified name as the final tie-break.
func declaredBefore(a, b *symtab.Definition) bool {
	if a.FilePath != b.FilePath {
		return a.FilePath < b.FilePath
	}
	if a.Loc.Line != b.Loc.Line {
		return a.Loc.Line < b.Loc.Line
	}
	if a.Loc.Col != b.Loc.Col {
		return a.Loc.Col < b.Loc.Col
	}
	return a.QualifiedName < b.QualifiedName
}

// resolveBaseName resolves one extends entry to the qualified name of
// an indexed class. An unresolvable base is treated as external.
func (h *Hierarchy) resolveBaseName(class *symtab.Definition, base string) string {
	return h.table.ResolveClassName(class.FilePath, base)
}

// detectCycles finds extends cycles via DFS with on-stack marking.
// Returns one slice of qualified names per cycle, deterministically
// ordered.
func (h *Hierarchy) detectCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(h.classes))
	stack := make([]string, 0, 8)
	var cycles [][]string

	var visit func(qname string)
	visit = func(qname string) {
		color[qname] = gray
		stack = append(stack, qname)
		entity := h.classes[qname]
		for _, base := range entity.Extends {
			if _, ok := h.classes[base]; !ok {
				continue
			}
			switch color[base] {
			case white:
				visit(base)
			case gray:
				// Found a back edge: slice the cycle off the stack.
				start := len(stack) - 1
				for start >= 0 && stack[start] != base {
					start--
				}
				cycle := make([]string, len(stack)-start)
				copy(cycle, stack[start:])
				cycles = append(cycles, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		color[qname] = black
	}

	names := make([]string, 0, len(h.classes))
	for qname := range h.classes {
		names = append(names, qname)
	}
	sort.Strings(names)
	for _, qname := range names {
		if color[qname] == white {
			visit(qname)
		}
	}
	return cycles
}

// Class returns the entity for a qualified class name.
func (h *Hierarchy) Class(qname string) (*ClassEntity, bool) {
	e, ok := h.classes[qname]
	return e, ok
}

// Subclasses returns the direct subclasses of a class, ordered by
// declaration order.
func (h *Hierarchy) Subclasses(qname string) []string {
	return h.subclasses[qname]
}

// Classes returns every qualified class name in sorted order.
func (h *Hierarchy) Classes() []string {
	out := make([]string, 0, len(h.classes))
	for qname := range h.classes {
		out = append(out, qname)
	}
	sort.Strings(out)
	return out
}
