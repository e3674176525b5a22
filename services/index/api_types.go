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
	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// BuildRequest is the body of POST /v1/index/build.
type BuildRequest struct {
	// ProjectRoot labels the index; snapshots group by it.
	ProjectRoot string `json:"project_root" binding:"required"`

	// Files are the scope trees to index. An empty list is rejected by
	// the service with NO_FILES, not by request validation.
	Files []*scopetree.File `json:"files"`
}

// BuildResponse summarizes a completed build.
type BuildResponse struct {
	IndexID string     `json:"index_id"`
	Stats   IndexStats `json:"stats"`
}

// UpdateFilesRequest is the body of POST /v1/index/:id/files.
type UpdateFilesRequest struct {
	Files []*scopetree.File `json:"files" binding:"required"`
}

// IndexSummary is one entry of GET /v1/index.
type IndexSummary struct {
	IndexID     string     `json:"index_id"`
	ProjectRoot string     `json:"project_root"`
	CreatedAt   string     `json:"created_at"`
	Stats       IndexStats `json:"stats"`
}

// DefinitionInfo is the wire form of a definition in query responses.
type DefinitionInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	FilePath      string `json:"file_path"`
	Line          int    `json:"line"`
	OwnerClass    string `json:"owner_class,omitempty"`
	Abstract      bool   `json:"abstract,omitempty"`
	Arity         int    `json:"arity"`
}

// EdgeInfo is one call edge with its peer definition resolved.
type EdgeInfo struct {
	Peer       DefinitionInfo `json:"peer"`
	CallSiteID string         `json:"call_site_id"`
	Dispatch   string         `json:"dispatch"`
	Confidence string         `json:"confidence"`
	Suspended  bool           `json:"suspended"`
	Line       int            `json:"line"`
	Col        int            `json:"col"`
}

// EdgesResponse answers the callers and callees endpoints.
type EdgesResponse struct {
	Definition DefinitionInfo `json:"definition"`
	Edges      []EdgeInfo     `json:"edges"`
	Truncated  bool           `json:"truncated"`
}

// ResolveResponse answers GET /v1/index/:id/resolve.
type ResolveResponse struct {
	Site    *resolve.CallSite `json:"site"`
	Targets []DefinitionInfo  `json:"targets"`
}

// DiagnosticsResponse answers GET /v1/index/:id/diagnostics.
type DiagnosticsResponse struct {
	Diagnostics []*diag.Diagnostic `json:"diagnostics"`
	Warnings    int               `json:"warnings"`
	Errors      int               `json:"errors"`
}

// SaveSnapshotRequest is the body of POST /v1/index/:id/snapshot.
type SaveSnapshotRequest struct {
	Label string `json:"label,omitempty"`
}

// SaveSnapshotResponse confirms a stored snapshot.
type SaveSnapshotResponse struct {
	SnapshotID      string `json:"snapshot_id"`
	GraphHash       string `json:"graph_hash"`
	DefinitionCount int    `json:"definition_count"`
	EdgeCount       int    `json:"edge_count"`
	CompressedSize  int64  `json:"compressed_size"`
}
