// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package callgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

// Edge is one directed call relationship between two definitions.
//
// A call site with N candidate targets contributes N edges, all sharing
// the same CallSiteID. Cycles (recursion, mutual recursion) are valid.
type Edge struct {
	// FromID is the calling definition's ID.
	FromID string `json:"from_id"`

	// ToID is the candidate target definition's ID.
	ToID string `json:"to_id"`

	// CallSiteID ties the edge back to the call site that produced it.
	CallSiteID string `json:"call_site_id"`

	// Dispatch records whether the target is fixed or one of a
	// polymorphic candidate set.
	Dispatch resolve.DispatchKind `json:"dispatch"`

	// Confidence is the resolution confidence of the originating site.
	Confidence resolve.Confidence `json:"confidence"`

	// Suspended marks edges at or after a suspension point in the
	// caller's body.
	Suspended bool `json:"suspended"`

	// Line and Col locate the call expression in the caller's file.
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Graph is the call graph over a frozen definition set.
//
// Description:
//
//	Nodes are definitions; edges come from resolved call sites. The
//	graph has two states: building (AddNode/AddSite allowed, queries
//	not) and frozen (queries allowed, mutation rejected). Unknown-
//	confidence sites are retained as sites but contribute no edges.
//
// Thread Safety:
//
//	All methods are mutex-guarded; frozen graphs are safe for
//	unlimited concurrent reads.
type Graph struct {
	// ProjectRoot is the root the indexed scope trees were read from.
	ProjectRoot string

	// BuiltAtMilli is set by Freeze (Unix milliseconds UTC).
	BuiltAtMilli int64

	mu     sync.RWMutex
	frozen bool

	nodes map[string]*symtab.Definition
	sites []*resolve.CallSite
	edges []Edge

	outEdges map[string][]int
	inEdges  map[string][]int

	// Lookup indexes, built once at Freeze.
	nodesByQName map[string]*symtab.Definition
	sitesByID    map[string]*resolve.CallSite
}

// ErrGraphFrozen is returned by mutations after Freeze.
var ErrGraphFrozen = fmt.Errorf("call graph is frozen")

// NewGraph creates an empty graph in building state.
func NewGraph(projectRoot string) *Graph {
	return &Graph{
		ProjectRoot: projectRoot,
		nodes:       make(map[string]*symtab.Definition),
		outEdges:    make(map[string][]int),
		inEdges:     make(map[string][]int),
	}
}

// AddNode registers a definition as a graph node.
func (g *Graph) AddNode(def *symtab.Definition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("definition must not be nil and must have an ID")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return ErrGraphFrozen
	}
	g.nodes[def.ID] = def
	return nil
}

// AddSite records a resolved call site and materializes its edges.
//
// Description:
//
//	Module-level calls carry no caller definition and are kept as
//	sites only. Each known target yields one edge; a target ID the
//	node set does not contain is an input inconsistency and fails the
//	whole call.
func (g *Graph) AddSite(site *resolve.CallSite) error {
	if site == nil {
		return fmt.Errorf("call site must not be nil")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return ErrGraphFrozen
	}

	g.sites = append(g.sites, site)
	if site.CallerID == "" {
		return nil
	}
	if _, ok := g.nodes[site.CallerID]; !ok {
		return fmt.Errorf("call site %s: unknown caller %s", site.ID, site.CallerID)
	}
	for _, target := range site.TargetIDs {
		if _, ok := g.nodes[target]; !ok {
			return fmt.Errorf("call site %s: unknown target %s", site.ID, target)
		}
		g.edges = append(g.edges, Edge{
			FromID:     site.CallerID,
			ToID:       target,
			CallSiteID: site.ID,
			Dispatch:   site.Dispatch,
			Confidence: site.Confidence,
			Suspended:  site.Suspended,
			Line:       site.Loc.Line,
			Col:        site.Loc.Col,
		})
	}
	return nil
}

// Freeze transitions the graph to read-only state.
//
// Description:
//
//	Sorts edges and sites into their canonical order and builds the
//	adjacency indexes. Idempotent.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return
	}

	sort.Slice(g.edges, func(i, j int) bool {
		a, b := g.edges[i], g.edges[j]
		if a.FromID != b.FromID {
			return a.FromID < b.FromID
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		return a.ToID < b.ToID
	})
	sort.Slice(g.sites, func(i, j int) bool {
		a, b := g.sites[i], g.sites[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Loc.Line != b.Loc.Line {
			return a.Loc.Line < b.Loc.Line
		}
		return a.Loc.Col < b.Loc.Col
	})

	for i, e := range g.edges {
		g.outEdges[e.FromID] = append(g.outEdges[e.FromID], i)
		g.inEdges[e.ToID] = append(g.inEdges[e.ToID], i)
	}

	g.nodesByQName = make(map[string]*symtab.Definition, len(g.nodes))
	for _, def := range g.nodes {
		g.nodesByQName[def.QualifiedName] = def
	}
	g.sitesByID = make(map[string]*resolve.CallSite, len(g.sites))
	for _, site := range g.sites {
		g.sitesByID[site.ID] = site
	}

	g.BuiltAtMilli = time.Now().UnixMilli()
	g.frozen = true
}

// Frozen reports whether the graph is read-only.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Node returns the definition for an ID.
func (g *Graph) Node(id string) (*symtab.Definition, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	def, ok := g.nodes[id]
	return def, ok
}

// NodeByQualifiedName finds a node by its qualified name. Indexed on
// frozen graphs; falls back to a scan while building.
func (g *Graph) NodeByQualifiedName(qname string) (*symtab.Definition, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.nodesByQName != nil {
		def, ok := g.nodesByQName[qname]
		return def, ok
	}
	for _, def := range g.nodes {
		if def.QualifiedName == qname {
			return def, true
		}
	}
	return nil, false
}

// SiteByID returns the call site with the given ID. Only populated on
// frozen graphs.
func (g *Graph) SiteByID(id string) (*resolve.CallSite, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	site, ok := g.sitesByID[id]
	return site, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// SiteCount returns the number of recorded call sites.
func (g *Graph) SiteCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sites)
}

// Sites returns all call sites in canonical order. Only valid on a
// frozen graph.
func (g *Graph) Sites() []*resolve.CallSite {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*resolve.CallSite, len(g.sites))
	copy(out, g.sites)
	return out
}

// CalleesOf returns the outgoing edges of a definition in canonical
// order.
func (g *Graph) CalleesOf(defID string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeSet(g.outEdges[defID])
}

// CallersOf returns the incoming edges of a definition, ordered by
// caller and position.
func (g *Graph) CallersOf(defID string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeSet(g.inEdges[defID])
}

func (g *Graph) edgeSet(indexes []int) []Edge {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]Edge, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, g.edges[i])
	}
	return out
}

// PathExists reports whether toID is reachable from fromID.
//
// Description:
//
//	Breadth-first over outgoing edges; safe on cyclic graphs. A
//	definition is trivially reachable from itself.
func (g *Graph) PathExists(fromID, toID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[fromID]; !ok {
		return false
	}
	if fromID == toID {
		return true
	}

	visited := map[string]bool{fromID: true}
	queue := []string{fromID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, i := range g.outEdges[cur] {
			next := g.edges[i].ToID
			if next == toID {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Hash returns a deterministic SHA-256 hash of the graph structure.
//
// Description:
//
//	Covers sorted node IDs and canonical edge order, not timestamps,
//	so two builds over identical input hash identically.
func (g *Graph) Hash() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString("n:")
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	for _, e := range g.edges {
		fmt.Fprintf(&sb, "e:%s>%s@%s:%d\n", e.FromID, e.ToID, e.CallSiteID, e.Dispatch)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
