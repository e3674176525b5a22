// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolve implements call-site resolution: every call
// expression is mapped to the conservative set of definitions it may
// invoke, with an explicit confidence level. Ambiguity degrades
// confidence; it never degrades into a guess presented as certain.
package resolve

import (
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

// Confidence is the precision of a call site's resolution. Higher is
// more precise: Exact > Ambiguous > Unknown.
type Confidence int

const (
	// ConfidenceUnknown means no resolvable target: the callee is
	// likely external. The target set is empty.
	ConfidenceUnknown Confidence = iota

	// ConfidenceAmbiguous means multiple plausible targets; the set is
	// a conservative superset of the true runtime targets.
	ConfidenceAmbiguous

	// ConfidenceExact means the target set is deterministic for the
	// statically-known receiver type.
	ConfidenceExact
)

// String returns the string representation of the Confidence.
func (c Confidence) String() string {
	switch c {
	case ConfidenceExact:
		return "exact"
	case ConfidenceAmbiguous:
		return "ambiguous"
	case ConfidenceUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// DispatchKind distinguishes fixed from polymorphic targets.
type DispatchKind int

const (
	// DispatchStatic is a single fixed target.
	DispatchStatic DispatchKind = iota

	// DispatchVirtual is a polymorphic candidate set.
	DispatchVirtual
)

// String returns the string representation of the DispatchKind.
func (d DispatchKind) String() string {
	switch d {
	case DispatchStatic:
		return "static"
	case DispatchVirtual:
		return "virtual"
	default:
		return "invalid"
	}
}

// ReceiverKind classifies how a call names its callee.
type ReceiverKind int

const (
	// ReceiverNone is a free call: a bare name.
	ReceiverNone ReceiverKind = iota

	// ReceiverInstance is a member call through an explicit receiver.
	ReceiverInstance

	// ReceiverSelf is a member call on the enclosing instance, whether
	// written self.name(...) or as a bare member name inside a method.
	ReceiverSelf

	// ReceiverBinding is an invoked binding: a parameter or local
	// bound to a callable, called directly.
	ReceiverBinding
)

// String returns the string representation of the ReceiverKind.
func (r ReceiverKind) String() string {
	switch r {
	case ReceiverNone:
		return "free"
	case ReceiverInstance:
		return "instance"
	case ReceiverSelf:
		return "self"
	case ReceiverBinding:
		return "binding"
	default:
		return "invalid"
	}
}

// Strategy records which resolution path produced a call site's
// outcome, surfaced in build stats.
type Strategy int

const (
	// StrategyDirect is a free call or invoked binding resolving to a
	// single definition.
	StrategyDirect Strategy = iota

	// StrategyDeclaredType resolved through the receiver's declared
	// type and the override index.
	StrategyDeclaredType

	// StrategySelfMember resolved on the enclosing instance.
	StrategySelfMember

	// StrategyNameArity is the name+arity fallback for receivers of
	// unknown declared type.
	StrategyNameArity

	// StrategyUnresolved produced an empty target set.
	StrategyUnresolved
)

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyDeclaredType:
		return "declared_type"
	case StrategySelfMember:
		return "self_member"
	case StrategyNameArity:
		return "name_arity"
	case StrategyUnresolved:
		return "unresolved"
	default:
		return "invalid"
	}
}

// CallSite is one call expression and its resolution outcome.
type CallSite struct {
	// ID is the stable call-site identifier.
	ID string `json:"id"`

	// CallerID is the enclosing definition's ID. Empty for
	// module-level calls.
	CallerID string `json:"caller_id,omitempty"`

	// FilePath is the owning file.
	FilePath string `json:"file_path"`

	// Loc is the call's source position.
	Loc scopetree.Location `json:"loc"`

	// Callee is the called name as written.
	Callee string `json:"callee"`

	// Receiver classifies the call shape.
	Receiver ReceiverKind `json:"receiver"`

	// TargetIDs are the resolved definition IDs, a conservative
	// superset of the true runtime targets, ordered deterministically.
	// Empty exactly when Confidence is Unknown.
	TargetIDs []string `json:"target_ids,omitempty"`

	// Confidence is the resolution precision.
	Confidence Confidence `json:"confidence"`

	// Dispatch is Static for a fixed target, Virtual for a candidate
	// set. Computed once here and cached in the call graph.
	Dispatch DispatchKind `json:"dispatch"`

	// Suspended is true when the call occurs at or after an
	// asynchronous-suspension point within its caller. Annotation
	// only: it never changes target resolution.
	Suspended bool `json:"suspended,omitempty"`

	// ExternalPackage is the inferred package prefix for Unknown sites
	// whose callee is known to live outside the index. Empty when no
	// package could be inferred.
	ExternalPackage string `json:"external_package,omitempty"`

	// Decorators is the decorator chain of the resolved target when
	// the target is single. Metadata: the chain is never an extra call
	// edge.
	Decorators []string `json:"decorators,omitempty"`

	// Strategy records the resolution path taken.
	Strategy Strategy `json:"strategy"`
}
