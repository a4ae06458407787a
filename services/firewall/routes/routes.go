// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianShield/services/firewall/audit"
	"github.com/AleutianAI/AleutianShield/services/firewall/dashboard"
	"github.com/AleutianAI/AleutianShield/services/firewall/handlers"
	"github.com/AleutianAI/AleutianShield/services/firewall/pipeline"
	"github.com/AleutianAI/AleutianShield/services/firewall/scanner"
)

// SetupRoutes wires the firewall's HTTP surface onto the router.
func SetupRoutes(
	router *gin.Engine,
	p *pipeline.Pipeline,
	docScanner *scanner.Scanner,
	hub *dashboard.Hub,
	auditSink *audit.BadgerSink,
) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/analyze", handlers.HandleAnalyze(p, hub))
		v1.POST("/scan", handlers.HandleScan(docScanner))
		v1.GET("/audit", handlers.HandleAuditTrail(auditSink))
		v1.GET("/dashboard/ws", handlers.HandleDashboardWS(hub))
	}
}
