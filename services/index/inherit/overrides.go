// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package inherit

import (
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

// buildOverrideIndex precomputes, for every class, the concrete
// member definitions declared in its strict subtree, grouped by member
// name and ordered by subtree traversal (subclasses in declaration
// order, depth first). Cyclic classes contribute nothing and index
// nothing: their dispatch is Unknown.
func (h *Hierarchy) buildOverrideIndex(classDefs []*symtab.Definition) {
	for _, def := range classDefs {
		entity := h.classes[def.QualifiedName]
		if entity.Cyclic {
			continue
		}
		byMember := make(map[string][]*symtab.Definition)
		visited := map[string]bool{def.QualifiedName: true}
		h.collectSubtreeMembers(def.QualifiedName, visited, byMember)
		if len(byMember) > 0 {
			h.overrides[def.QualifiedName] = byMember
		}
	}
}

// collectSubtreeMembers walks the strict subtree below class qname,
// appending concrete callable members to byMember in traversal order.
func (h *Hierarchy) collectSubtreeMembers(qname string, visited map[string]bool, byMember map[string][]*symtab.Definition) {
	for _, sub := range h.subclasses[qname] {
		if visited[sub] {
			continue
		}
		visited[sub] = true
		if entity, ok := h.classes[sub]; ok && entity.Cyclic {
			continue
		}
		for _, member := range h.table.MembersOf(sub) {
			if member.Abstract || !member.Kind.Callable() {
				continue
			}
			byMember[member.Name] = append(byMember[member.Name], member)
		}
		h.collectSubtreeMembers(sub, visited, byMember)
	}
}

// MemberLookup resolves a member name on a class through its
// linearization.
//
// Description:
//
//	Walks the class's linearized resolution order and returns the
//	first definition of the member, concrete or abstract. A member is
//	effectively abstract for the querying class exactly when the
//	first definition found along the linearization is abstract: any
//	concrete override between the declaration and the querying class
//	is found first.
//
// Outputs:
//   - *symtab.Definition: The member definition, nil when not found.
//   - bool: False when the class is unknown, cyclic, or has no such
//     member anywhere along its linearization.
func (h *Hierarchy) MemberLookup(classQName, member string) (*symtab.Definition, bool) {
	entity, ok := h.classes[classQName]
	if !ok || entity.Cyclic {
		return nil, false
	}
	for _, qname := range entity.Linearization {
		for _, def := range h.table.MembersOf(qname) {
			if def.Name == member {
				return def, true
			}
		}
	}
	return nil, false
}

// Overrides returns the concrete definitions overriding a member
// anywhere in the strict subtree below the class, in subtree
// traversal order. The returned slice is shared: callers must not
// mutate it. Precomputed; never recomputes.
func (h *Hierarchy) Overrides(classQName, member string) []*symtab.Definition {
	byMember, ok := h.overrides[classQName]
	if !ok {
		return nil
	}
	return byMember[member]
}

// IsAbstract reports whether a member is abstract as seen from a
// class: declared abstract, or inherited as abstract with no concrete
// override between the declaration and the class along the
// linearization.
func (h *Hierarchy) IsAbstract(classQName, member string) bool {
	def, ok := h.MemberLookup(classQName, member)
	return ok && def.Abstract
}
