// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/atlas/services/agent/handlers"
	"github.com/AleutianAI/atlas/services/agent/orchestrate"
	"github.com/AleutianAI/atlas/services/docproc"
)

// SetupRoutes registers the full HTTP surface.
func SetupRoutes(router *gin.Engine, o *orchestrate.Orchestrator, counter *handlers.ConnCounter, processor *docproc.Processor, logger *slog.Logger) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ws/status", handlers.WSStatus(counter))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/agent/ws", handlers.HandleAgentWebSocket(o, counter, logger))
		v1.POST("/documents/process", docproc.HandleProcess(processor))
	}
}
