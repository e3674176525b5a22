// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package inherit

// linearize computes the C3-style resolution order for a class:
// the class itself, then the C3 merge of its parents' linearizations
// and the declared parent list. Declared extends order is preserved, a
// class always appears before its ancestors, and common ancestors
// appear after all their descendants.
//
// inProgress guards against re-entry; cycles are already excluded
// before linearize runs, so re-entry only occurs on diamond shapes,
// which the memo-free recursion handles by recomputation.
func (h *Hierarchy) linearize(qname string, inProgress map[string]bool) []string {
	entity, ok := h.classes[qname]
	if !ok || entity.Cyclic || inProgress[qname] {
		return nil
	}
	if entity.Linearization != nil {
		return entity.Linearization
	}
	inProgress[qname] = true
	defer delete(inProgress, qname)

	parents := make([]string, 0, len(entity.Extends))
	for _, base := range entity.Extends {
		if e, ok := h.classes[base]; ok && !e.Cyclic {
			parents = append(parents, base)
		}
	}

	sequences := make([][]string, 0, len(parents)+1)
	for _, p := range parents {
		if lin := h.linearize(p, inProgress); len(lin) > 0 {
			sequences = append(sequences, lin)
		}
	}
	if len(parents) > 0 {
		sequences = append(sequences, parents)
	}

	merged, ok := c3Merge(sequences)
	if !ok {
		// Inconsistent hierarchy (no valid C3 order). Degrade to a
		// deterministic depth-first order with duplicates keeping
		// their last occurrence, which preserves descendants-first.
		merged = h.depthFirstOrder(parents)
	}

	lin := make([]string, 0, len(merged)+1)
	lin = append(lin, qname)
	lin = append(lin, merged...)
	entity.Linearization = lin
	return lin
}

// c3Merge merges parent linearizations per the C3 rule: repeatedly
// take the head of the first sequence whose head appears in no other
// sequence's tail. Returns ok=false when no candidate head exists.
func c3Merge(sequences [][]string) ([]string, bool) {
	work := make([][]string, 0, len(sequences))
	for _, seq := range sequences {
		if len(seq) > 0 {
			cp := make([]string, len(seq))
			copy(cp, seq)
			work = append(work, cp)
		}
	}

	var out []string
	for len(work) > 0 {
		picked := ""
		for _, seq := range work {
			head := seq[0]
			if inAnyTail(work, head) {
				continue
			}
			picked = head
			break
		}
		if picked == "" {
			return nil, false
		}
		out = append(out, picked)

		next := work[:0]
		for _, seq := range work {
			if seq[0] == picked {
				seq = seq[1:]
			}
			if len(seq) > 0 {
				next = append(next, seq)
			}
		}
		work = next
	}
	return out, true
}

// inAnyTail reports whether name appears past the head of any
// sequence.
func inAnyTail(sequences [][]string, name string) bool {
	for _, seq := range sequences {
		for _, s := range seq[1:] {
			if s == name {
				return true
			}
		}
	}
	return false
}

// depthFirstOrder is the fallback ancestor ordering for hierarchies
// with no valid C3 merge: depth-first over declared parents, keeping
// the last occurrence of each ancestor so descendants precede common
// ancestors. Deterministic because parent lists are declared order.
func (h *Hierarchy) depthFirstOrder(parents []string) []string {
	var order []string
	var visit func(qname string)
	visit = func(qname string) {
		entity, ok := h.classes[qname]
		if !ok || entity.Cyclic {
			return
		}
		order = append(order, qname)
		for _, base := range entity.Extends {
			visit(base)
		}
	}
	for _, p := range parents {
		visit(p)
	}

	// Keep last occurrences.
	seen := make(map[string]bool, len(order))
	out := make([]string, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		if seen[order[i]] {
			continue
		}
		seen[order[i]] = true
		out = append(out, order[i])
	}
	// Reverse back to forward order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
