// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diag defines the diagnostic taxonomy shared by every stage of
// the indexing pipeline. Stages accumulate diagnostics instead of
// aborting: only a structurally invalid file is fatal, and then only
// for that file.
package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Code identifies a diagnostic category.
type Code string

// Diagnostic codes, ordered roughly by severity.
const (
	// CodeMalformedInput marks a structurally invalid scope tree.
	// Fatal for the owning file; other files proceed.
	CodeMalformedInput Code = "MALFORMED_INPUT"

	// CodeCyclicInheritance marks an extends cycle. Non-fatal: the
	// implicated classes degrade to Unknown dispatch.
	CodeCyclicInheritance Code = "CYCLIC_INHERITANCE"

	// CodeDuplicateDefinition marks two declarations claiming the same
	// qualified name in the same scope. Non-fatal: last wins.
	CodeDuplicateDefinition Code = "DUPLICATE_DEFINITION"

	// CodeUnresolvedSymbol marks a reference that could not be resolved
	// to an indexed definition. Non-fatal: the call site's confidence
	// degrades to Ambiguous or Unknown.
	CodeUnresolvedSymbol Code = "UNRESOLVED_SYMBOL"
)

// Severity classifies how a diagnostic affects the build.
type Severity int

const (
	// SeverityWarning diagnostics never remove results from the index.
	SeverityWarning Severity = iota

	// SeverityError diagnostics drop results for the owning file only.
	SeverityError
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is one accumulated build finding.
type Diagnostic struct {
	// Code is the diagnostic category.
	Code Code `json:"code"`

	// Severity indicates whether results were dropped.
	Severity Severity `json:"severity"`

	// FilePath is the owning file, empty for cross-file findings
	// (e.g. an inheritance cycle spanning files).
	FilePath string `json:"file_path,omitempty"`

	// Line is the 1-based source line, 0 when not applicable.
	Line int `json:"line,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface so a Diagnostic can be returned
// or wrapped where an error is expected.
func (d *Diagnostic) Error() string {
	if d.FilePath != "" {
		return fmt.Sprintf("%s: %s: %s", d.Code, d.FilePath, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// List accumulates diagnostics across pipeline stages.
//
// Thread Safety:
//
//	List is safe for concurrent use. Parallel per-file stages append
//	to a shared List during the build.
type List struct {
	mu    sync.Mutex
	items []*Diagnostic
}

// NewList creates an empty diagnostic list.
func NewList() *List {
	return &List{}
}

// Add appends a diagnostic to the list.
func (l *List) Add(d *Diagnostic) {
	if d == nil {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, d)
	l.mu.Unlock()
}

// Addf builds and appends a diagnostic from a format string.
func (l *List) Addf(code Code, sev Severity, filePath string, line int, format string, args ...any) {
	l.Add(&Diagnostic{
		Code:     code,
		Severity: sev,
		FilePath: filePath,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Merge appends every diagnostic from other.
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	other.mu.Lock()
	items := make([]*Diagnostic, len(other.items))
	copy(items, other.items)
	other.mu.Unlock()

	l.mu.Lock()
	l.items = append(l.items, items...)
	l.mu.Unlock()
}

// Items returns the diagnostics sorted by (file, line, code) for
// deterministic output. The returned slice is a copy.
func (l *List) Items() []*Diagnostic {
	l.mu.Lock()
	out := make([]*Diagnostic, len(l.items))
	copy(out, l.items)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Len returns the number of accumulated diagnostics.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// CountBySeverity returns how many diagnostics carry the given severity.
func (l *List) CountBySeverity(sev Severity) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range l.items {
		if d.Severity == sev {
			n++
		}
	}
	return n
}
