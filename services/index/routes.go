// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all index routes with the router group.
//
// Description:
//
//	Registers the /v1/index/* endpoints. The group should already
//	carry any required middleware.
//
// Build Endpoints:
//
//	POST /v1/index/build - Build an index from scope trees
//	POST /v1/index/:id/files - Apply changed files and rebuild
//	GET  /v1/index - List cached indexes
//
// Query Endpoints:
//
//	GET  /v1/index/:id/stats - Build statistics
//	GET  /v1/index/:id/diagnostics - Build diagnostics
//	GET  /v1/index/:id/definition - Look up definitions
//	GET  /v1/index/:id/callers - Incoming call edges
//	GET  /v1/index/:id/callees - Outgoing call edges
//	GET  /v1/index/:id/resolve - Call site at a source position
//	GET  /v1/index/:id/export - Full call graph download
//
// Snapshot Endpoints:
//
//	POST   /v1/index/:id/snapshot - Persist the call graph
//	GET    /v1/index/snapshots - List stored snapshots
//	DELETE /v1/index/snapshots/:snapshot_id - Delete a snapshot
//
// Health Endpoints:
//
//	GET /v1/index/health - Health check
//	GET /v1/index/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	idx := rg.Group("/index")
	{
		idx.POST("/build", handlers.HandleBuild)
		idx.GET("", handlers.HandleListIndexes)

		idx.GET("/snapshots", handlers.HandleListSnapshots)
		idx.DELETE("/snapshots/:snapshot_id", handlers.HandleDeleteSnapshot)

		idx.GET("/health", handlers.HandleHealth)
		idx.GET("/ready", handlers.HandleReady)

		idx.POST("/:id/files", handlers.HandleUpdateFiles)
		idx.GET("/:id/stats", handlers.HandleStats)
		idx.GET("/:id/diagnostics", handlers.HandleDiagnostics)
		idx.GET("/:id/definition", handlers.HandleDefinition)
		idx.GET("/:id/callers", handlers.HandleCallers)
		idx.GET("/:id/callees", handlers.HandleCallees)
		idx.GET("/:id/resolve", handlers.HandleResolve)
		idx.GET("/:id/export", handlers.HandleExport)
		idx.POST("/:id/snapshot", handlers.HandleSaveSnapshot)
	}
}
