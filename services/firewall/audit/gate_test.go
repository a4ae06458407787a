// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// memorySink records events in memory with controllable readiness.
type memorySink struct {
	readiness  Readiness
	readyDelay time.Duration
	recordErr  error

	mu     sync.Mutex
	events []datatypes.AuditEvent
}

func (s *memorySink) WaitReady(ctx context.Context) Readiness {
	if s.readyDelay > 0 {
		select {
		case <-time.After(s.readyDelay):
		case <-ctx.Done():
			return ReadinessTimeout
		}
	}
	return s.readiness
}

func (s *memorySink) Record(ctx context.Context, event datatypes.AuditEvent) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) stored() []datatypes.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]datatypes.AuditEvent(nil), s.events...)
}

func TestShouldRecord(t *testing.T) {
	tests := []struct {
		name           string
		classification datatypes.Classification
		verdict        datatypes.Verdict
		want           bool
	}{
		{
			name:           "safe and factually correct",
			classification: datatypes.ClassificationSafe,
			verdict:        datatypes.VerdictFactuallyCorrect,
			want:           false,
		},
		{
			name:           "risky overrides clean verdict",
			classification: datatypes.ClassificationRisky,
			verdict:        datatypes.VerdictFactuallyCorrect,
			want:           true,
		},
		{
			name:           "safe but hallucinated",
			classification: datatypes.ClassificationSafe,
			verdict:        datatypes.VerdictLikelyHallucinated,
			want:           true,
		},
		{
			name:           "blocked",
			classification: datatypes.ClassificationBlocked,
			verdict:        datatypes.VerdictRejected,
			want:           true,
		},
		{
			name:           "safe fast path",
			classification: datatypes.ClassificationSafe,
			verdict:        datatypes.VerdictFastVerified,
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRecord(tt.classification, tt.verdict); got != tt.want {
				t.Errorf("ShouldRecord(%v, %v) = %v, want %v",
					tt.classification, tt.verdict, got, tt.want)
			}
		})
	}
}

func TestGate_RecordsMatchingStates(t *testing.T) {
	sink := &memorySink{readiness: ReadinessReady}
	gate, err := NewGate(sink, 8, time.Second, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	gate.Start()

	gate.Submit(datatypes.State{
		RequestID:      "req-1",
		UserPrompt:     "bad prompt",
		Classification: datatypes.ClassificationRisky,
		RiskScore:      0.8,
		Verdict:        datatypes.VerdictFactuallyCorrect,
	})
	gate.Submit(datatypes.State{
		RequestID:      "req-2",
		Classification: datatypes.ClassificationSafe,
		Verdict:        datatypes.VerdictFactuallyCorrect,
	})
	gate.Stop()

	events := sink.stored()
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
	if events[0].RequestID != "req-1" {
		t.Errorf("stored request = %q, want req-1", events[0].RequestID)
	}
	if events[0].Prompt != "bad prompt" {
		t.Errorf("stored prompt = %q", events[0].Prompt)
	}
	if events[0].AttackFlags == "" {
		t.Error("attack flags not serialized")
	}
}

func TestGate_DropsWhenSinkNeverReady(t *testing.T) {
	sink := &memorySink{readyDelay: 5 * time.Second}
	dropped := 0
	gate, err := NewGate(sink, 4, 20*time.Millisecond, nil,
		WithGateMetrics(func() { dropped++ }, func() {}))
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	gate.Start()

	gate.Submit(datatypes.State{
		RequestID:      "req-1",
		Classification: datatypes.ClassificationBlocked,
		Verdict:        datatypes.VerdictRejected,
	})
	gate.Stop()

	if got := sink.stored(); len(got) != 0 {
		t.Errorf("stored %d events past readiness timeout, want 0", len(got))
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestGate_SinkErrorsNeverPropagate(t *testing.T) {
	sink := &memorySink{readiness: ReadinessReady, recordErr: errors.New("disk full")}
	gate, err := NewGate(sink, 4, time.Second, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	gate.Start()

	// Submit must stay silent about the failing sink.
	gate.Submit(datatypes.State{
		Classification: datatypes.ClassificationRisky,
		Verdict:        datatypes.VerdictUnverifiable,
	})
	gate.Stop()
}

func TestGate_SubmitAfterStopIsSafe(t *testing.T) {
	sink := &memorySink{readiness: ReadinessReady}
	gate, _ := NewGate(sink, 4, time.Second, nil)
	gate.Start()
	gate.Stop()

	// Must not panic.
	gate.Submit(datatypes.State{
		Classification: datatypes.ClassificationRisky,
		Verdict:        datatypes.VerdictUnverifiable,
	})
}

func TestBadgerSink_RoundTrip(t *testing.T) {
	sink := NewBadgerSink(t.TempDir(), nil)
	defer sink.Close()

	ctx := context.Background()
	if r := sink.WaitReady(ctx); r != ReadinessReady {
		t.Fatalf("WaitReady = %v", r)
	}

	event := datatypes.AuditEvent{
		Timestamp:      time.Now().UTC(),
		RequestID:      "req-42",
		Prompt:         "prompt",
		Classification: datatypes.ClassificationRisky,
		RiskScore:      0.9,
		AttackFlags:    `{"categories":{}}`,
		Verdict:        datatypes.VerdictUnverifiable,
	}
	if err := sink.Record(ctx, event); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := sink.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].RequestID != "req-42" || events[0].Verdict != datatypes.VerdictUnverifiable {
		t.Errorf("round-trip mismatch: %+v", events[0])
	}
}
