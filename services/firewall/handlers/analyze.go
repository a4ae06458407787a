// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the firewall's HTTP surface.
package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianShield/services/firewall/dashboard"
	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
	"github.com/AleutianAI/AleutianShield/services/firewall/observability"
	"github.com/AleutianAI/AleutianShield/services/firewall/pipeline"
)

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Prompt string `json:"prompt" binding:"required"`

	// LLMResponse, when set, switches the run into verification-only
	// mode: the generator is skipped and this response is verified.
	LLMResponse string `json:"llm_response,omitempty"`
}

// HandleAnalyze streams one pipeline run as server-sent events, one
// event per completed stage, terminating with the final state snapshot.
//
// # Description
//
// Each stage event is also broadcast to the dashboard hub so connected
// dashboards follow runs they did not initiate.
func HandleAnalyze(p *pipeline.Pipeline, hub *dashboard.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt must not be blank"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")

		start := time.Now()
		events := p.Invoke(c.Request.Context(), req.Prompt, req.LLMResponse)

		c.Stream(func(w io.Writer) bool {
			event, ok := <-events
			if !ok {
				return false
			}
			hub.Broadcast(event)
			if event.Final {
				recordRun(event, time.Since(start))
			}
			c.SSEvent(event.Stage, event)
			return true
		})
	}
}

// recordRun updates the run-level metrics from a final stage event.
func recordRun(event datatypes.StageEvent, elapsed time.Duration) {
	observability.PipelineDuration.Observe(elapsed.Seconds())
	observability.PipelineRuns.WithLabelValues(
		string(event.State.Classification),
		string(event.State.Verdict),
	).Inc()
	if event.State.Verdict == datatypes.VerdictRejected {
		observability.BlockedPrompts.Inc()
	}
}
