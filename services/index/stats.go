// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
)

// StrategyCounters tallies which rung of the resolution ladder settled
// each call site.
type StrategyCounters struct {
	Direct       int `json:"direct"`
	DeclaredType int `json:"declared_type"`
	SelfMember   int `json:"self_member"`
	NameArity    int `json:"name_arity"`
	Unresolved   int `json:"unresolved"`
}

// ConfidenceCounters tallies call sites per confidence level.
type ConfidenceCounters struct {
	Exact     int `json:"exact"`
	Ambiguous int `json:"ambiguous"`
	Unknown   int `json:"unknown"`
}

// IndexStats summarizes one index build.
type IndexStats struct {
	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`
	Definitions    int `json:"definitions"`
	Duplicates     int `json:"duplicates"`
	Classes        int `json:"classes"`
	CyclicClasses  int `json:"cyclic_classes"`
	CallSites      int `json:"call_sites"`
	Edges          int `json:"edges"`
	Suspended      int `json:"suspended_sites"`

	Strategies StrategyCounters   `json:"strategies"`
	Confidence ConfidenceCounters `json:"confidence"`

	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`

	DurationMillis int64 `json:"duration_millis"`
}

// tally accumulates one resolved call site into the counters.
func (s *IndexStats) tally(site *resolve.CallSite) {
	s.CallSites++
	if site.Suspended {
		s.Suspended++
	}
	switch site.Strategy {
	case resolve.StrategyDirect:
		s.Strategies.Direct++
	case resolve.StrategyDeclaredType:
		s.Strategies.DeclaredType++
	case resolve.StrategySelfMember:
		s.Strategies.SelfMember++
	case resolve.StrategyNameArity:
		s.Strategies.NameArity++
	case resolve.StrategyUnresolved:
		s.Strategies.Unresolved++
	}
	switch site.Confidence {
	case resolve.ConfidenceExact:
		s.Confidence.Exact++
	case resolve.ConfidenceAmbiguous:
		s.Confidence.Ambiguous++
	case resolve.ConfidenceUnknown:
		s.Confidence.Unknown++
	}
}

// tallyDiags folds diagnostic severities into the stats.
func (s *IndexStats) tallyDiags(diags *diag.List) {
	s.Warnings = diags.CountBySeverity(diag.SeverityWarning)
	s.Errors = diags.CountBySeverity(diag.SeverityError)
}
