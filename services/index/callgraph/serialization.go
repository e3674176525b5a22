// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package callgraph

import (
	"fmt"
	"sort"

	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

// GraphSchemaVersion is the serialization schema version. Increment on
// breaking format changes.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON form of a frozen Graph.
//
// Description:
//
//	Definitions are sorted by qualified name (ID as tiebreaker) and
//	edges by caller then position. No timestamps are embedded, so two
//	builds over identical input serialize to byte-identical output;
//	build and save times live in SnapshotMetadata. Call sites are the
//	source of truth for edges; reconstruction rebuilds edges from
//	sites rather than trusting the edge list.
//
// Thread Safety: value type, no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format.
	SchemaVersion string `json:"schema_version"`

	// ProjectRoot is the root the indexed scope trees were read from.
	ProjectRoot string `json:"project_root"`

	// GraphHash is the deterministic structural hash.
	GraphHash string `json:"graph_hash"`

	// Definitions contains every node, sorted by qualified name.
	Definitions []*symtab.Definition `json:"definitions"`

	// Sites contains every call site in canonical order.
	Sites []*resolve.CallSite `json:"sites"`

	// Edges contains the materialized edges in canonical order.
	Edges []Edge `json:"edges"`
}

// ToSerializable converts a frozen graph to its JSON form.
func (g *Graph) ToSerializable() *SerializableGraph {
	if g == nil {
		return &SerializableGraph{
			SchemaVersion: GraphSchemaVersion,
			Definitions:   []*symtab.Definition{},
			Sites:         []*resolve.CallSite{},
			Edges:         []Edge{},
		}
	}

	g.mu.RLock()
	defs := make([]*symtab.Definition, 0, len(g.nodes))
	for _, def := range g.nodes {
		defs = append(defs, def)
	}
	sites := make([]*resolve.CallSite, len(g.sites))
	copy(sites, g.sites)
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	projectRoot := g.ProjectRoot
	g.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].QualifiedName != defs[j].QualifiedName {
			return defs[i].QualifiedName < defs[j].QualifiedName
		}
		return defs[i].ID < defs[j].ID
	})

	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		ProjectRoot:   projectRoot,
		GraphHash:     g.Hash(),
		Definitions:   defs,
		Sites:         sites,
		Edges:         edges,
	}
}

// FromSerializable reconstructs a frozen Graph from its JSON form.
//
// Description:
//
//	Replays AddNode and AddSite through the normal construction path
//	so the adjacency indexes are rebuilt rather than trusted, then
//	freezes. The original build time is not part of the payload; the
//	snapshot store restores it from metadata.
func FromSerializable(sg *SerializableGraph) (*Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("serializable graph must not be nil")
	}
	if sg.SchemaVersion != GraphSchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (expected %q)", sg.SchemaVersion, GraphSchemaVersion)
	}

	g := NewGraph(sg.ProjectRoot)
	for i, def := range sg.Definitions {
		if def == nil {
			return nil, fmt.Errorf("definition at index %d is nil", i)
		}
		if err := g.AddNode(def); err != nil {
			return nil, fmt.Errorf("adding definition %s: %w", def.ID, err)
		}
	}
	for i, site := range sg.Sites {
		if site == nil {
			return nil, fmt.Errorf("call site at index %d is nil", i)
		}
		if err := g.AddSite(site); err != nil {
			return nil, fmt.Errorf("adding call site %s: %w", site.ID, err)
		}
	}

	g.Freeze()
	return g, nil
}
