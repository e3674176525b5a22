// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

// DefaultMaxCandidates caps the name+arity fallback. A name matched by
// more candidates than this resolves Unknown instead: a pool that wide
// carries no signal, and truncating it would break the conservative-
// superset invariant.
const DefaultMaxCandidates = 8

// HeuristicPolicy tunes the name+arity fallback used for receivers of
// unknown declared type. The fallback trades recall for precision and
// is deliberately a knob, not a fixed rule.
type HeuristicPolicy struct {
	// MaxCandidates is the largest candidate set the fallback will
	// return. Zero means DefaultMaxCandidates.
	MaxCandidates int `yaml:"max_candidates"`

	// SameModuleFirst restricts the fallback to candidates from the
	// caller's module whenever any exist there.
	SameModuleFirst bool `yaml:"same_module_first"`

	// CommonNames lists bare member names too common to resolve by
	// name alone (collection verbs like "add" and "push"). Member
	// calls to these through an unknown receiver resolve Unknown
	// rather than risk wrong edges that pollute the graph as depth
	// increases.
	CommonNames []string `yaml:"common_names"`

	commonSet map[string]struct{}
}

// DefaultHeuristicPolicy returns the default fallback tuning.
func DefaultHeuristicPolicy() HeuristicPolicy {
	return HeuristicPolicy{
		MaxCandidates:   DefaultMaxCandidates,
		SameModuleFirst: true,
		CommonNames: []string{
			"add", "append", "clear", "close", "extend", "get",
			"insert", "items", "keys", "pop", "push", "remove",
			"run", "set", "sort", "update", "values", "write",
		},
	}
}

// normalize fills defaults and builds the common-name set.
func (p *HeuristicPolicy) normalize() {
	if p.MaxCandidates <= 0 {
		p.MaxCandidates = DefaultMaxCandidates
	}
	p.commonSet = make(map[string]struct{}, len(p.CommonNames))
	for _, name := range p.CommonNames {
		p.commonSet[name] = struct{}{}
	}
}

// isCommon reports whether a bare name is on the common-name list.
func (p *HeuristicPolicy) isCommon(name string) bool {
	_, ok := p.commonSet[name]
	return ok
}
