// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability registers the firewall's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aleutian_firewall"

var (
	// PipelineRuns counts completed runs by final classification and
	// verdict.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Completed pipeline runs by classification and verdict.",
	}, []string{"classification", "verdict"})

	// PipelineDuration observes end-to-end run latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end pipeline run duration.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// StageDuration observes per-stage latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Per-stage pipeline duration.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	// BlockedPrompts counts prompts the routing guard blocked.
	BlockedPrompts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocked_prompts_total",
		Help:      "Prompts rejected by the block route.",
	})

	// AuditEventsStored counts audit events durably persisted.
	AuditEventsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_stored_total",
		Help:      "Audit events persisted to the sink.",
	})

	// AuditEventsDropped counts audit events dropped for any reason
	// (queue full, sink unready, sink error).
	AuditEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Audit events dropped before persistence.",
	})

	// CacheHits and CacheMisses mirror the judgment cache counters.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "judgment_cache_hits_total",
		Help:      "Judgment cache hits.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "judgment_cache_misses_total",
		Help:      "Judgment cache misses.",
	})

	// DocumentsScanned counts scanner runs by outcome.
	DocumentsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_scanned_total",
		Help:      "Scanned documents by outcome.",
	}, []string{"outcome"})
)
