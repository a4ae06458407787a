// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit decides when a pipeline run leaves a durable trace and
// persists those traces without ever blocking the pipeline's return path.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// Readiness is the typed outcome of a sink readiness check.
type Readiness int

const (
	// ReadinessReady means the sink accepted its one-time initialization.
	ReadinessReady Readiness = iota

	// ReadinessTimeout means initialization did not finish inside the
	// gate's readiness window.
	ReadinessTimeout

	// ReadinessUnavailable means initialization failed outright.
	ReadinessUnavailable
)

func (r Readiness) String() string {
	switch r {
	case ReadinessReady:
		return "ready"
	case ReadinessTimeout:
		return "timeout"
	case ReadinessUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Sink durably stores audit events. Callers treat Record as
// fire-and-forget; a sink that cannot store an event returns an error
// for operability logging only.
type Sink interface {
	// WaitReady performs one-time lazy initialization, bounded by ctx.
	// Safe to call more than once; later calls return the first outcome.
	WaitReady(ctx context.Context) Readiness

	// Record stores one event.
	Record(ctx context.Context, event datatypes.AuditEvent) error

	Close() error
}

// =============================================================================
// Badger Sink
// =============================================================================

// BadgerSink persists audit events to an embedded BadgerDB.
//
// # Description
//
// Events are keyed `audit:{unix_nano}:{request_id}` so a key-ordered scan
// replays the trail chronologically. The database opens lazily on the
// first WaitReady call, mirroring the gate's one-time readiness wait.
//
// # Thread Safety
//
// Safe for concurrent use after WaitReady returns ReadinessReady.
type BadgerSink struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	db      *badger.DB
	outcome *Readiness
}

// NewBadgerSink creates a sink that will open its database at path on
// first use. InMemory mode is selected with an empty path.
func NewBadgerSink(path string, log *slog.Logger) *BadgerSink {
	if log == nil {
		log = slog.Default()
	}
	return &BadgerSink{path: path, log: log}
}

var _ Sink = (*BadgerSink)(nil)

// WaitReady opens the database once. The outcome is sticky: a failed
// open is not retried by later calls.
func (s *BadgerSink) WaitReady(ctx context.Context) Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != nil {
		return *s.outcome
	}

	type openResult struct {
		db  *badger.DB
		err error
	}
	done := make(chan openResult, 1)
	go func() {
		opts := badger.DefaultOptions(s.path).WithLogger(nil)
		if s.path == "" {
			opts = opts.WithInMemory(true)
		}
		db, err := badger.Open(opts)
		done <- openResult{db: db, err: err}
	}()

	var outcome Readiness
	select {
	case res := <-done:
		if res.err != nil {
			s.log.Error("audit store open failed", "path", s.path, "error", res.err)
			outcome = ReadinessUnavailable
		} else {
			s.db = res.db
			outcome = ReadinessReady
		}
	case <-ctx.Done():
		// The open goroutine closes a late-arriving handle itself.
		go func() {
			if res := <-done; res.db != nil {
				_ = res.db.Close()
			}
		}()
		outcome = ReadinessTimeout
	}

	s.outcome = &outcome
	return outcome
}

// Record stores one event.
func (s *BadgerSink) Record(ctx context.Context, event datatypes.AuditEvent) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return errors.New("audit store is not ready")
	}

	event.Timestamp = timestampOrNow(event.Timestamp)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := fmt.Sprintf("audit:%d:%s", event.Timestamp.UnixNano(), event.RequestID)

	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("persist audit event: %w", err)
	}
	return nil
}

// Events returns all stored events in chronological order. Used by the
// operator surface; the pipeline never reads the trail back.
func (s *BadgerSink) Events(ctx context.Context) ([]datatypes.AuditEvent, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("audit store is not ready")
	}

	var events []datatypes.AuditEvent
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("audit:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var event datatypes.AuditEvent
				if err := json.Unmarshal(val, &event); err != nil {
					s.log.Warn("skipping undecodable audit record",
						"key", string(it.Item().Key()), "error", err)
					return nil
				}
				events = append(events, event)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit trail: %w", err)
	}
	return events, nil
}

// Close shuts the database down. Safe to call before WaitReady.
func (s *BadgerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// =============================================================================
// Noop Sink
// =============================================================================

// NoopSink discards every event. Used when auditing is disabled.
type NoopSink struct{}

var _ Sink = NoopSink{}

func (NoopSink) WaitReady(ctx context.Context) Readiness                  { return ReadinessReady }
func (NoopSink) Record(ctx context.Context, _ datatypes.AuditEvent) error { return nil }
func (NoopSink) Close() error                                             { return nil }

// timestampOrNow guards against zero timestamps producing colliding keys.
func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
