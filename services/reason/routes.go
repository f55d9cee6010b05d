// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reason

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all reasoning routes with the router group.
//
// Endpoints:
//
//	POST   /v1/reason/graphs - Load a schema document
//	GET    /v1/reason/graphs - List loaded graphs
//	GET    /v1/reason/graphs/:name - Graph stats
//	PUT    /v1/reason/graphs/:name - Replace a graph's document
//	DELETE /v1/reason/graphs/:name - Unload a graph
//	POST   /v1/reason/graphs/:name/infer - Run inference with evidence
//	POST   /v1/reason/graphs/:name/query - Query one variable
//	POST   /v1/reason/graphs/:name/explain - Values of non-evidence variables
//	POST   /v1/reason/graphs/:name/train - Fit learnable rule weights
//	GET    /v1/reason/graphs/:name/export - Schema snapshot with trained weights
//	POST   /v1/reason/validate - Validate a document without loading
//	GET    /v1/reason/health - Liveness check
//	GET    /v1/reason/ready - Readiness check
//
// Example:
//
//	service, _ := reason.NewService(reason.DefaultServiceConfig())
//	handlers := reason.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	reason.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	r := rg.Group("/reason")
	{
		// Graph lifecycle
		r.POST("/graphs", handlers.HandleCreateGraph)
		r.GET("/graphs", handlers.HandleListGraphs)
		r.GET("/graphs/:name", handlers.HandleGetGraph)
		r.PUT("/graphs/:name", handlers.HandleReplaceGraph)
		r.DELETE("/graphs/:name", handlers.HandleDeleteGraph)

		// Reasoning
		r.POST("/graphs/:name/infer", handlers.HandleInfer)
		r.POST("/graphs/:name/query", handlers.HandleQuery)
		r.POST("/graphs/:name/explain", handlers.HandleExplain)

		// Training
		r.POST("/graphs/:name/train", handlers.HandleTrain)
		r.GET("/graphs/:name/export", handlers.HandleExport)

		// Validation
		r.POST("/validate", handlers.HandleValidate)

		// Health checks
		r.GET("/health", handlers.HandleHealth)
		r.GET("/ready", handlers.HandleReady)
	}
}
