// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TheGreenCedar/CodeStory/services/index/bind"
	"github.com/TheGreenCedar/CodeStory/services/index/diag"
	"github.com/TheGreenCedar/CodeStory/services/index/inherit"
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

var tracer = otel.Tracer("codestory.index.resolve")

// ResolverOption is a functional option for configuring Resolver.
type ResolverOption func(*Resolver)

// WithPolicy overrides the name+arity fallback tuning.
func WithPolicy(p HeuristicPolicy) ResolverOption {
	return func(r *Resolver) {
		r.policy = p
	}
}

// Resolver resolves every call expression in a file against the frozen
// snapshots.
//
// Thread Safety:
//
//	Resolver holds only immutable snapshots; File may run concurrently
//	across files, each writing to its own output slice.
type Resolver struct {
	table  *symtab.Table
	hier   *inherit.Hierarchy
	binder *bind.Resolver
	policy HeuristicPolicy
}

// NewResolver creates a call-site resolver over frozen snapshots.
func NewResolver(table *symtab.Table, hier *inherit.Hierarchy, binder *bind.Resolver, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		table:  table,
		hier:   hier,
		binder: binder,
		policy: DefaultHeuristicPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy.normalize()
	return r
}

// File resolves every call site in a file, in program order.
//
// Description:
//
//	Walks each definition body in statement order, tracking
//	asynchronous-suspension points: every call at or after a marker is
//	flagged suspended, which annotates ordering metadata and never
//	changes target resolution. Malformed names degrade confidence;
//	nothing here throws.
func (r *Resolver) File(ctx context.Context, f *scopetree.File, fb *bind.FileBindings, diags *diag.List) []*CallSite {
	_, span := tracer.Start(ctx, "resolve.Resolver.File")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", f.Path))

	w := &fileResolution{r: r, file: f, fb: fb, diags: diags}
	w.walkStmts(f.Stmts, f.Path, nil)
	for _, d := range f.Decls {
		w.walkDecl(d)
	}

	span.SetAttributes(attribute.Int("call_sites.count", len(w.sites)))
	return w.sites
}

// fileResolution carries per-file resolution state.
type fileResolution struct {
	r     *Resolver
	file  *scopetree.File
	fb    *bind.FileBindings
	diags *diag.List
	sites []*CallSite
}

// walkDecl descends into a declaration's body, resolving its calls and
// recursing into nested declarations. Each body is its own suspension
// context.
func (w *fileResolution) walkDecl(d *scopetree.Decl) {
	if d.Body == nil {
		return
	}
	defID := scopetree.GenerateID(w.file.Path, d.Loc.Line, d.Name)
	caller, ok := w.r.table.ByID(defID)
	if !ok {
		// Displaced duplicate: its calls would attribute to a
		// definition the table no longer knows.
		return
	}
	w.walkStmts(d.Body.Stmts, defID, caller)
	for _, child := range d.Body.Decls {
		w.walkDecl(child)
	}
}

// walkStmts resolves the calls of one body in program order.
func (w *fileResolution) walkStmts(stmts []*scopetree.Stmt, scopeID string, caller *symtab.Definition) {
	suspended := false
	for _, s := range stmts {
		switch s.Kind {
		case scopetree.StmtKindSuspend:
			suspended = true
		case scopetree.StmtKindAssign:
			if s.Value != nil && s.Value.Kind == scopetree.ExprKindLambda && s.Value.Lambda != nil {
				w.walkDecl(s.Value.Lambda)
			}
		case scopetree.StmtKindCall:
			site := w.resolveCall(scopeID, caller, s.Call, s.Loc)
			site.Suspended = suspended
			w.sites = append(w.sites, site)
		}
	}
}

// resolveCall resolves one call expression through the resolution
// ladder: classification, direct resolution, declared-type dispatch,
// then the name+arity fallback.
func (w *fileResolution) resolveCall(scopeID string, caller *symtab.Definition, call *scopetree.CallExpr, loc scopetree.Location) *CallSite {
	site := &CallSite{
		ID:       scopetree.GenerateCallSiteID(w.file.Path, loc, call.Callee),
		FilePath: w.file.Path,
		Loc:      loc,
		Callee:   call.Callee,
	}
	if caller != nil {
		site.CallerID = caller.ID
	}

	switch {
	case call.Receiver == "self" || call.Receiver == "this":
		site.Receiver = ReceiverSelf
		w.resolveSelfMember(site, caller, call)
	case call.Receiver != "":
		site.Receiver = ReceiverInstance
		w.resolveInstanceMember(site, scopeID, caller, call)
	default:
		w.resolveFree(site, scopeID, caller, call)
	}

	if len(site.TargetIDs) == 1 {
		if def, ok := w.r.table.ByID(site.TargetIDs[0]); ok {
			site.Decorators = def.Decorators
		}
	}
	return site
}

// resolveFree handles bare-name calls: free functions, invoked
// bindings, implicit self-members, and constructor calls.
func (w *fileResolution) resolveFree(site *CallSite, scopeID string, caller *symtab.Definition, call *scopetree.CallExpr) {
	site.Receiver = ReceiverNone

	if b := w.fb.Lookup(scopeID, call.Callee); b != nil {
		if b.Param || b.Local {
			site.Receiver = ReceiverBinding
			if b.Kind == bind.TargetDefinition && b.Def != nil && (b.Def.Kind.Callable() || b.Def.Kind == symtab.DefKindClass) {
				w.exact(site, b.Def)
				return
			}
			// A binding of unknown value invoked directly. Its local
			// name carries no signal for the name+arity fallback, so
			// the honest outcome is Unknown.
			w.unknown(site, call, false)
			return
		}
		switch b.Kind {
		case bind.TargetDefinition:
			if b.Def != nil {
				if caller != nil && caller.OwnerClass != "" && b.Def.OwnerClass == caller.OwnerClass {
					// Bare sibling-member name: an implicit self call,
					// subject to override widening like any other
					// member dispatch on the owning class.
					site.Receiver = ReceiverSelf
					w.resolveSelfMember(site, caller, call)
					return
				}
				w.exact(site, b.Def)
				return
			}
		case bind.TargetAlias, bind.TargetExternal:
			// Known external: explicitly Unknown, not a warning.
			w.external(site, call, b.Alias)
			return
		}
	}

	// Bare member name inside a method body: implicit receiver is the
	// enclosing instance.
	if caller != nil && caller.OwnerClass != "" {
		if _, ok := w.r.hier.MemberLookup(caller.OwnerClass, call.Callee); ok {
			site.Receiver = ReceiverSelf
			w.resolveSelfMember(site, caller, call)
			return
		}
		if entity, ok := w.r.hier.Class(caller.OwnerClass); ok && entity.Cyclic {
			w.unknown(site, call, false)
			return
		}
	}

	if qname := w.r.binder.QualifyName(w.file.Path, call.Callee); qname != "" {
		if def, ok := w.r.table.ByQualifiedName(qname); ok {
			w.exact(site, def)
			return
		}
		w.external(site, call, qname)
		return
	}

	w.fallback(site, caller, call)
}

// resolveSelfMember handles calls on the enclosing instance. The
// declared type is the caller's owning class; overriding subclasses
// widen the set exactly as they do for any receiver of that type.
func (w *fileResolution) resolveSelfMember(site *CallSite, caller *symtab.Definition, call *scopetree.CallExpr) {
	if caller == nil || caller.OwnerClass == "" {
		w.fallback(site, caller, call)
		return
	}
	site.Strategy = StrategySelfMember
	if !w.resolveViaClass(site, caller.OwnerClass, call) {
		w.fallback(site, caller, call)
	}
}

// resolveInstanceMember handles member calls through an explicit
// receiver expression.
func (w *fileResolution) resolveInstanceMember(site *CallSite, scopeID string, caller *symtab.Definition, call *scopetree.CallExpr) {
	recv := w.fb.Lookup(scopeID, call.Receiver)
	if recv == nil {
		// Receiver may itself be a dotted external path.
		if qname := w.r.binder.QualifyName(w.file.Path, call.Receiver); qname != "" {
			w.external(site, call, qname+"."+call.Callee)
			return
		}
		w.fallback(site, caller, call)
		return
	}

	if recv.DeclaredType != "" {
		site.Strategy = StrategyDeclaredType
		if w.resolveViaClass(site, recv.DeclaredType, call) {
			return
		}
		w.fallback(site, caller, call)
		return
	}

	if recv.Kind == bind.TargetDefinition && recv.Def != nil && recv.Def.Kind == symtab.DefKindClass {
		// ClassName.member(...): static reference to the class's own
		// member, still subject to abstractness.
		site.Strategy = StrategyDeclaredType
		if w.resolveViaClass(site, recv.Def.QualifiedName, call) {
			return
		}
		w.fallback(site, caller, call)
		return
	}

	if recv.Kind == bind.TargetAlias || recv.Kind == bind.TargetExternal {
		member := w.r.binder.Attribute(w.fb, scopeID, call.Receiver, call.Callee)
		if member.Kind == bind.TargetDefinition && member.Def != nil {
			w.exact(site, member.Def)
			return
		}
		w.external(site, call, recv.Alias+"."+call.Callee)
		return
	}

	// Untyped receiver: parameter without annotation, external value,
	// or generic type parameter.
	w.fallback(site, caller, call)
}

// resolveViaClass applies the declared-type dispatch rules for a
// member call on a known class. Returns false when the member is
// unknown on that class, handing the site to the fallback.
func (w *fileResolution) resolveViaClass(site *CallSite, classQName string, call *scopetree.CallExpr) bool {
	entity, ok := w.r.hier.Class(classQName)
	if !ok {
		return false
	}
	if entity.Cyclic {
		// Cycle members degrade to Unknown dispatch, by construction.
		w.unknown(site, call, false)
		return true
	}

	member, found := w.r.hier.MemberLookup(classQName, call.Callee)
	overrides := w.r.hier.Overrides(classQName, call.Callee)

	if !found && len(overrides) == 0 {
		return false
	}

	if !found {
		// The member exists only below the declared type. The true
		// runtime subtype is unknown, so every subtree override is a
		// plausible target.
		w.virtual(site, overrides, ConfidenceAmbiguous)
		return true
	}

	if !member.Abstract && len(overrides) == 0 {
		site.TargetIDs = []string{member.ID}
		site.Dispatch = DispatchStatic
		site.Confidence = ConfidenceExact
		return true
	}

	if member.Abstract {
		if len(overrides) == 0 {
			// Abstract with no concrete override anywhere: an empty
			// set presented as Exact would be a lie.
			w.unknown(site, call, false)
			return true
		}
		w.virtual(site, overrides, ConfidenceExact)
		return true
	}

	// Concrete at the declared type plus overrides below it.
	targets := make([]*symtab.Definition, 0, len(overrides)+1)
	targets = append(targets, member)
	targets = append(targets, overrides...)
	w.virtual(site, targets, ConfidenceAmbiguous)
	return true
}

// fallback applies the name+arity heuristic for callees whose receiver
// type is unknown.
func (w *fileResolution) fallback(site *CallSite, caller *symtab.Definition, call *scopetree.CallExpr) {
	site.Strategy = StrategyNameArity

	memberish := site.Receiver == ReceiverInstance || site.Receiver == ReceiverSelf
	if memberish && w.r.policy.isCommon(call.Callee) {
		// Names this common resolve to the wrong definition more often
		// than the right one; prefer leaving the target unresolved.
		w.unknown(site, call, false)
		return
	}

	var candidates []*symtab.Definition
	for _, def := range w.r.table.ByName(call.Callee) {
		if !def.Kind.Callable() {
			continue
		}
		if caller != nil && def.ID == caller.ID {
			// A bare recursive-looking match through the heuristic is
			// more often a different same-named symbol.
			continue
		}
		if call.ArgCount > def.Arity {
			continue
		}
		candidates = append(candidates, def)
	}

	if w.r.policy.SameModuleFirst && len(candidates) > 1 {
		module := w.r.table.Module(w.file.Path)
		var local []*symtab.Definition
		for _, def := range candidates {
			if w.r.table.Module(def.FilePath) == module {
				local = append(local, def)
			}
		}
		if len(local) > 0 {
			candidates = local
		}
	}

	if len(candidates) == 0 {
		w.unknown(site, call, false)
		return
	}
	if len(candidates) > w.r.policy.MaxCandidates {
		// Truncation would break the conservative-superset invariant;
		// a pool this wide is noise, not signal.
		w.unknown(site, call, false)
		return
	}

	w.virtual(site, candidates, ConfidenceAmbiguous)
	if len(candidates) == 1 {
		site.Dispatch = DispatchStatic
	}
}

// exact marks a single fixed target.
func (w *fileResolution) exact(site *CallSite, def *symtab.Definition) {
	site.TargetIDs = []string{def.ID}
	site.Dispatch = DispatchStatic
	site.Confidence = ConfidenceExact
	site.Strategy = StrategyDirect
}

// virtual marks a polymorphic candidate set.
func (w *fileResolution) virtual(site *CallSite, targets []*symtab.Definition, conf Confidence) {
	ids := make([]string, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, def := range targets {
		if seen[def.ID] {
			continue
		}
		seen[def.ID] = true
		ids = append(ids, def.ID)
	}
	site.TargetIDs = ids
	site.Dispatch = DispatchVirtual
	site.Confidence = conf
}

// external marks an Unknown outcome for a callee known to live outside
// the index, recording the inferred package prefix of its qualified
// name.
func (w *fileResolution) external(site *CallSite, call *scopetree.CallExpr, qname string) {
	site.ExternalPackage = externalPackage(qname)
	w.unknown(site, call, true)
}

// externalPackage extracts the dotted package prefix of an external
// symbol name. Names without a dot carry no package information.
func externalPackage(qname string) string {
	if i := strings.LastIndexByte(qname, '.'); i > 0 {
		return qname[:i]
	}
	return ""
}

// unknown marks the explicit cannot-resolve outcome. external
// suppresses the warning for callees known to live outside the index.
func (w *fileResolution) unknown(site *CallSite, call *scopetree.CallExpr, external bool) {
	site.TargetIDs = nil
	site.Dispatch = DispatchStatic
	site.Confidence = ConfidenceUnknown
	site.Strategy = StrategyUnresolved
	if !external {
		w.diags.Addf(diag.CodeUnresolvedSymbol, diag.SeverityWarning, w.file.Path, site.Loc.Line,
			"cannot resolve call to %q", call.Callee)
	}
}
