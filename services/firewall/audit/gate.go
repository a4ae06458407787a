// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// ShouldRecord is the audit gating predicate.
//
// # Description
//
// Pure function of the run's final classification and verdict: a run is
// audit-worthy when the prompt was judged Blocked or Risky, or when the
// verdict mentions hallucination (case-insensitive substring, so both
// the full-verification and any future verdict phrasing match).
func ShouldRecord(classification datatypes.Classification, verdict datatypes.Verdict) bool {
	if classification == datatypes.ClassificationBlocked || classification == datatypes.ClassificationRisky {
		return true
	}
	return datatypes.ContainsHallucination(verdict)
}

// Gate emits audit events asynchronously and best-effort.
//
// # Description
//
// Submit never blocks the pipeline: events enter a bounded queue and a
// single background worker drains it into the sink. The worker performs
// the sink's one-time readiness wait before the first write; when the
// sink never becomes ready, every event is dropped silently (logged
// once). There is no retry and no backpressure: at most one attempt per
// event.
//
// # Thread Safety
//
// Safe for concurrent use. Start and Stop are one-shot.
type Gate struct {
	sink         Sink
	queue        chan datatypes.AuditEvent
	readyTimeout time.Duration
	log          *slog.Logger

	dropped func()
	stored  func()

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// GateOption adjusts gate construction.
type GateOption func(*Gate)

// WithGateMetrics wires drop/store counters, typically Prometheus
// counter increments.
func WithGateMetrics(dropped, stored func()) GateOption {
	return func(g *Gate) {
		g.dropped = dropped
		g.stored = stored
	}
}

// NewGate creates a gate over sink with a bounded queue.
//
// # Inputs
//
//   - sink: Destination store. Must not be nil.
//   - queueSize: Queue capacity; events past it are dropped.
//   - readyTimeout: How long the worker waits for the sink's one-time
//     initialization before giving up on auditing entirely.
func NewGate(sink Sink, queueSize int, readyTimeout time.Duration, log *slog.Logger, opts ...GateOption) (*Gate, error) {
	if sink == nil {
		return nil, errors.New("sink must not be nil")
	}
	if queueSize <= 0 {
		return nil, errors.New("queueSize must be positive")
	}
	if readyTimeout <= 0 {
		return nil, errors.New("readyTimeout must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	g := &Gate{
		sink:         sink,
		queue:        make(chan datatypes.AuditEvent, queueSize),
		readyTimeout: readyTimeout,
		log:          log,
		dropped:      func() {},
		stored:       func() {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start launches the background worker. Subsequent calls are no-ops.
func (g *Gate) Start() {
	g.startOnce.Do(func() {
		g.done = make(chan struct{})
		go g.run()
	})
}

// Stop closes the queue and waits for the worker to drain it. Events
// submitted after Stop are dropped.
func (g *Gate) Stop() {
	g.stopOnce.Do(func() {
		close(g.queue)
		if g.done != nil {
			<-g.done
		}
	})
}

// Submit evaluates the predicate against a final state and, when it
// holds, enqueues an event. Never blocks; a full or closed queue drops
// the event with a log line.
func (g *Gate) Submit(state datatypes.State) {
	if !ShouldRecord(state.Classification, state.Verdict) {
		return
	}
	event := BuildEvent(state)

	defer func() {
		// Submitting after Stop sends on a closed channel.
		if recover() != nil {
			g.dropped()
			g.log.Warn("audit event dropped, gate stopped", "request_id", event.RequestID)
		}
	}()

	select {
	case g.queue <- event:
	default:
		g.dropped()
		g.log.Warn("audit event dropped, queue full", "request_id", event.RequestID)
	}
}

// run is the worker loop: one readiness wait, then best-effort drains.
func (g *Gate) run() {
	defer close(g.done)

	ctx, cancel := context.WithTimeout(context.Background(), g.readyTimeout)
	readiness := g.sink.WaitReady(ctx)
	cancel()

	if readiness != ReadinessReady {
		g.log.Warn("audit sink never became ready, all events will be dropped",
			"readiness", readiness.String())
		for range g.queue {
			g.dropped()
		}
		return
	}

	for event := range g.queue {
		if err := g.sink.Record(context.Background(), event); err != nil {
			g.dropped()
			g.log.Warn("audit event persistence failed",
				"request_id", event.RequestID, "error", err)
			continue
		}
		g.stored()
	}
}

// BuildEvent projects pipeline state into an audit event. The attack
// report is serialized so flat-schema sinks can store it unchanged.
func BuildEvent(state datatypes.State) datatypes.AuditEvent {
	flags, err := json.Marshal(state.AttackDetection)
	if err != nil {
		flags = []byte("{}")
	}
	return datatypes.AuditEvent{
		Timestamp:      time.Now().UTC(),
		RequestID:      state.RequestID,
		Prompt:         state.UserPrompt,
		Classification: state.Classification,
		RiskScore:      state.RiskScore,
		AttackFlags:    string(flags),
		Verdict:        state.Verdict,
	}
}
