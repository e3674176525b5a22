// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TheGreenCedar/CodeStory/services/index/callgraph"
	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
	"github.com/TheGreenCedar/CodeStory/services/index/symtab"
)

// Handlers exposes the index service over HTTP.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the HTTP handler set for a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the X-Request-ID header, generating one
// when absent so every log line of a request correlates.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Header("X-Request-ID", id)
	return id
}

// resolveIndex loads the index named by the :id path param, writing the
// error response itself on failure.
func (h *Handlers) resolveIndex(c *gin.Context) (*CachedIndex, bool) {
	id := c.Param("id")
	ci, err := h.svc.Index(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "index not found: " + id,
			Code:  "INDEX_NOT_FOUND",
		})
		return nil, false
	}
	return ci, true
}

func definitionInfo(def *symtab.Definition) DefinitionInfo {
	return DefinitionInfo{
		ID:            def.ID,
		Name:          def.Name,
		QualifiedName: def.QualifiedName,
		Kind:          def.Kind.String(),
		FilePath:      def.FilePath,
		Line:          def.Loc.Line,
		OwnerClass:    def.OwnerClass,
		Abstract:      def.Abstract,
		Arity:         def.Arity,
	}
}

// HandleBuild handles POST /v1/index/build.
//
// Description:
//
//	Runs the full pipeline over the scope trees in the request body
//	and returns the new index ID with build stats. Per-file problems
//	appear in stats and diagnostics, not as HTTP errors.
//
// Response:
//
//	200 OK: BuildResponse
//	400 Bad Request: Malformed body or empty file list
//	500 Internal Server Error: Pipeline failure
func (h *Handlers) HandleBuild(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleBuild")

	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ci, err := h.svc.BuildIndex(c.Request.Context(), req.ProjectRoot, req.Files)
	if err == ErrNoFiles {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "NO_FILES",
		})
		return
	}
	if err != nil {
		logger.Error("build failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "index build failed: " + err.Error(),
			Code:  "BUILD_FAILED",
		})
		return
	}

	logger.Info("index built",
		slog.String("index_id", ci.ID),
		slog.Int("files", ci.Stats.FilesProcessed),
	)
	c.JSON(http.StatusOK, BuildResponse{IndexID: ci.ID, Stats: ci.Stats})
}

// HandleUpdateFiles handles POST /v1/index/:id/files.
//
// Description:
//
//	Merges changed scope trees into an existing index and rebuilds it
//	under the same ID. Files whose version stamp is not newer than the
//	cached one are ignored.
func (h *Handlers) HandleUpdateFiles(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUpdateFiles")

	var req UpdateFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ci, err := h.svc.UpdateFiles(c.Request.Context(), c.Param("id"), req.Files)
	if err == ErrIndexNotFound {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "index not found: " + c.Param("id"),
			Code:  "INDEX_NOT_FOUND",
		})
		return
	}
	if err != nil {
		logger.Error("update failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "index update failed: " + err.Error(),
			Code:  "UPDATE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, BuildResponse{IndexID: ci.ID, Stats: ci.Stats})
}

// HandleListIndexes handles GET /v1/index.
func (h *Handlers) HandleListIndexes(c *gin.Context) {
	indexes := h.svc.ListIndexes()
	out := make([]IndexSummary, 0, len(indexes))
	for _, ci := range indexes {
		out = append(out, IndexSummary{
			IndexID:     ci.ID,
			ProjectRoot: ci.ProjectRoot,
			CreatedAt:   ci.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Stats:       ci.Stats,
		})
	}
	c.JSON(http.StatusOK, gin.H{"indexes": out})
}

// HandleStats handles GET /v1/index/:id/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ci.Stats)
}

// HandleDiagnostics handles GET /v1/index/:id/diagnostics.
func (h *Handlers) HandleDiagnostics(c *gin.Context) {
	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DiagnosticsResponse{
		Diagnostics: ci.Diags.Items(),
		Warnings:    ci.Stats.Warnings,
		Errors:      ci.Stats.Errors,
	})
}

// HandleDefinition handles GET /v1/index/:id/definition.
//
// Query Parameters:
//
//	qname: Qualified name to look up (preferred)
//	name: Simple name, may match several definitions
func (h *Handlers) HandleDefinition(c *gin.Context) {
	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}

	if qname := c.Query("qname"); qname != "" {
		def, found := ci.Table.ByQualifiedName(qname)
		if !found {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "no definition with qualified name " + qname,
				Code:  "DEFINITION_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"definitions": []DefinitionInfo{definitionInfo(def)}})
		return
	}

	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "qname or name parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	defs := ci.Table.ByName(name)
	out := make([]DefinitionInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, definitionInfo(def))
	}
	c.JSON(http.StatusOK, gin.H{"definitions": out})
}

// HandleCallers handles GET /v1/index/:id/callers.
//
// Query Parameters:
//
//	def_id: Definition ID whose callers to list (required)
//	limit: Maximum edges, default 100
func (h *Handlers) HandleCallers(c *gin.Context) {
	h.handleEdges(c, true)
}

// HandleCallees handles GET /v1/index/:id/callees.
func (h *Handlers) HandleCallees(c *gin.Context) {
	h.handleEdges(c, false)
}

func (h *Handlers) handleEdges(c *gin.Context, incoming bool) {
	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}

	defID := c.Query("def_id")
	if defID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "def_id parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	def, found := ci.Graph.Node(defID)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no definition with id " + defID,
			Code:  "DEFINITION_NOT_FOUND",
		})
		return
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var edges []callgraph.Edge
	if incoming {
		edges = ci.Graph.CallersOf(defID)
	} else {
		edges = ci.Graph.CalleesOf(defID)
	}

	resp := EdgesResponse{
		Definition: definitionInfo(def),
		Edges:      make([]EdgeInfo, 0, len(edges)),
	}
	for _, e := range edges {
		if len(resp.Edges) >= limit {
			resp.Truncated = true
			break
		}
		peerID := e.FromID
		if !incoming {
			peerID = e.ToID
		}
		peer, found := ci.Graph.Node(peerID)
		if !found {
			continue
		}
		resp.Edges = append(resp.Edges, EdgeInfo{
			Peer:       definitionInfo(peer),
			CallSiteID: e.CallSiteID,
			Dispatch:   e.Dispatch.String(),
			Confidence: e.Confidence.String(),
			Suspended:  e.Suspended,
			Line:       e.Line,
			Col:        e.Col,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleResolve handles GET /v1/index/:id/resolve.
//
// Description:
//
//	Returns a resolved call site with its candidate targets expanded,
//	looked up either by stable call-site ID or by exact source
//	position.
//
// Query Parameters:
//
//	site_id: Stable call-site ID (preferred)
//	file: Scope tree file path
//	line, col: 1-based position of the call expression
func (h *Handlers) HandleResolve(c *gin.Context) {
	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}

	var site *resolve.CallSite
	var found bool
	if siteID := c.Query("site_id"); siteID != "" {
		site, found = ci.SiteByID(siteID)
	} else {
		file := c.Query("file")
		line, lineErr := strconv.Atoi(c.Query("line"))
		col, colErr := strconv.Atoi(c.Query("col"))
		if file == "" || lineErr != nil || colErr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "site_id, or file with line and col, is required",
				Code:  "MISSING_PARAMETER",
			})
			return
		}
		site, found = ci.SiteAt(file, line, col)
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no matching call site",
			Code:  "CALL_SITE_NOT_FOUND",
		})
		return
	}

	resp := ResolveResponse{Site: site, Targets: make([]DefinitionInfo, 0, len(site.TargetIDs))}
	for _, id := range site.TargetIDs {
		if def, found := ci.Table.ByID(id); found {
			resp.Targets = append(resp.Targets, definitionInfo(def))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExport handles GET /v1/index/:id/export.
//
// Description:
//
//	Streams the full call graph as deterministic JSON with a download
//	disposition.
func (h *Handlers) HandleExport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleExport")

	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}

	sg := ci.Graph.ToSerializable()
	logger.Info("exporting call graph",
		slog.String("index_id", ci.ID),
		slog.Int("definitions", len(sg.Definitions)),
		slog.Int("edges", len(sg.Edges)),
	)

	c.Header("Content-Disposition", "attachment; filename=callgraph_"+ci.ID+".json")
	c.Header("Content-Type", "application/json")
	encoder := json.NewEncoder(c.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sg); err != nil {
		logger.Error("failed to encode call graph", slog.Any("error", err))
	}
}

// HandleSaveSnapshot handles POST /v1/index/:id/snapshot.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveSnapshot")

	if h.svc.Snapshots() == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	ci, ok := h.resolveIndex(c)
	if !ok {
		return
	}

	var req SaveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Empty body is fine, the label is optional.
		req = SaveSnapshotRequest{}
	}

	meta, err := h.svc.Snapshots().Save(c.Request.Context(), ci.Graph, req.Label)
	if err != nil {
		logger.Error("snapshot save failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to save snapshot: " + err.Error(),
			Code:  "SNAPSHOT_SAVE_FAILED",
		})
		return
	}

	logger.Info("snapshot saved",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.Int("definition_count", meta.DefinitionCount),
	)
	c.JSON(http.StatusOK, SaveSnapshotResponse{
		SnapshotID:      meta.SnapshotID,
		GraphHash:       meta.GraphHash,
		DefinitionCount: meta.DefinitionCount,
		EdgeCount:       meta.EdgeCount,
		CompressedSize:  meta.CompressedSize,
	})
}

// HandleListSnapshots handles GET /v1/index/snapshots.
//
// Query Parameters:
//
//	project_root: Optional filter by project
//	limit: Maximum results, default 100
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	if h.svc.Snapshots() == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	projectHash := ""
	if root := c.Query("project_root"); root != "" {
		projectHash = callgraph.ProjectHash(root)
	}
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	metas, err := h.svc.Snapshots().List(c.Request.Context(), projectHash, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list snapshots: " + err.Error(),
			Code:  "SNAPSHOT_LIST_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": metas})
}

// HandleDeleteSnapshot handles DELETE /v1/index/snapshots/:snapshot_id.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteSnapshot")

	if h.svc.Snapshots() == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence not configured",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return
	}

	snapshotID := c.Param("snapshot_id")
	if err := h.svc.Snapshots().Delete(c.Request.Context(), snapshotID); err != nil {
		logger.Error("snapshot delete failed", slog.Any("error", err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "failed to delete snapshot: " + err.Error(),
			Code:  "SNAPSHOT_DELETE_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": snapshotID})
}

// HandleHealth handles GET /v1/index/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/index/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
