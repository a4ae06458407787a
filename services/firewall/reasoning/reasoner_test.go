// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianShield/services/llm"
)

// fakeLLM counts Generate calls and returns a canned response.
type fakeLLM struct {
	calls    atomic.Int64
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestCachedReasoner_MemoizesByTextAndInstruction(t *testing.T) {
	backend := &fakeLLM{response: "ok"}
	cache := NewJudgmentCache(time.Minute, 16)
	r, err := NewCachedReasoner(backend, cache)
	if err != nil {
		t.Fatalf("NewCachedReasoner: %v", err)
	}
	ctx := context.Background()

	// Two identical (text, instruction) calls hit the backend at most once.
	if _, err := r.Reason(ctx, "text", "instr", false); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := r.Reason(ctx, "text", "instr", false); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := backend.calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, want 1", got)
	}

	// A different instruction invokes the backend again.
	if _, err := r.Reason(ctx, "text", "other instr", false); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if got := backend.calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
}

func TestCachedReasoner_ErrorsAreNotCached(t *testing.T) {
	backend := &fakeLLM{err: errors.New("backend down")}
	cache := NewJudgmentCache(time.Minute, 16)
	r, _ := NewCachedReasoner(backend, cache)
	ctx := context.Background()

	if _, err := r.Reason(ctx, "t", "i", false); err == nil {
		t.Fatal("expected error")
	}

	// The backend recovers; the next call must reach it.
	backend.err = nil
	backend.response = "recovered"
	got, err := r.Reason(ctx, "t", "i", false)
	if err != nil {
		t.Fatalf("after recovery: %v", err)
	}
	if got != "recovered" {
		t.Errorf("got %q, want recovered", got)
	}
	if calls := backend.calls.Load(); calls != 2 {
		t.Errorf("backend calls = %d, want 2", calls)
	}
}

func TestNewCachedReasoner_Validation(t *testing.T) {
	if _, err := NewCachedReasoner(nil, NewJudgmentCache(time.Minute, 1)); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := NewCachedReasoner(&fakeLLM{}, nil); err == nil {
		t.Error("expected error for nil cache")
	}
}
