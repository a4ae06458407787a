// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"sync"
	"testing"
	"time"
)

func TestJudgmentCache_BasicOperations(t *testing.T) {
	cache := NewJudgmentCache(10*time.Minute, 100)

	t.Run("set and get", func(t *testing.T) {
		cache.Set("prompt", "classify", `{"classification":"Safe"}`)

		got, ok := cache.Get("prompt", "classify")
		if !ok {
			t.Fatal("expected cache hit")
		}
		if got != `{"classification":"Safe"}` {
			t.Errorf("unexpected cached response: %s", got)
		}
	})

	t.Run("miss for different text", func(t *testing.T) {
		if _, ok := cache.Get("other prompt", "classify"); ok {
			t.Error("expected cache miss")
		}
	})

	t.Run("miss for different instruction", func(t *testing.T) {
		if _, ok := cache.Get("prompt", "verify"); ok {
			t.Error("expected cache miss for different instruction")
		}
	})
}

func TestJudgmentCache_TTLExpiration(t *testing.T) {
	cache := NewJudgmentCache(50*time.Millisecond, 100)

	cache.Set("text", "instr", "resp")

	if _, ok := cache.Get("text", "instr"); !ok {
		t.Error("expected cache hit before expiration")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := cache.Get("text", "instr"); ok {
		t.Error("expected cache miss after expiration")
	}
}

func TestJudgmentCache_LRUEviction(t *testing.T) {
	cache := NewJudgmentCache(10*time.Minute, 3)

	cache.Set("q1", "i", "r1")
	cache.Set("q2", "i", "r2")
	cache.Set("q3", "i", "r3")

	// Touch q1 so q2 becomes the LRU entry.
	cache.Get("q1", "i")

	cache.Set("q4", "i", "r4")

	if _, ok := cache.Get("q2", "i"); ok {
		t.Error("expected q2 to be evicted")
	}
	for _, q := range []string{"q1", "q3", "q4"} {
		if _, ok := cache.Get(q, "i"); !ok {
			t.Errorf("expected %s to survive eviction", q)
		}
	}
	if cache.Size() != 3 {
		t.Errorf("size = %d, want 3", cache.Size())
	}
}

func TestJudgmentCache_UpdateExisting(t *testing.T) {
	cache := NewJudgmentCache(10*time.Minute, 2)

	cache.Set("q", "i", "old")
	cache.Set("q", "i", "new")

	got, ok := cache.Get("q", "i")
	if !ok || got != "new" {
		t.Errorf("got (%q, %v), want (new, true)", got, ok)
	}
	if cache.Size() != 1 {
		t.Errorf("size = %d, want 1", cache.Size())
	}
}

func TestJudgmentCache_Metrics(t *testing.T) {
	cache := NewJudgmentCache(10*time.Minute, 10)

	cache.Get("missing", "i")
	cache.Set("q", "i", "r")
	cache.Get("q", "i")

	if cache.Hits() != 1 {
		t.Errorf("hits = %d, want 1", cache.Hits())
	}
	if cache.Misses() != 1 {
		t.Errorf("misses = %d, want 1", cache.Misses())
	}
	if rate := cache.HitRate(); rate != 0.5 {
		t.Errorf("hit rate = %f, want 0.5", rate)
	}
}

func TestJudgmentCache_ConcurrentAccess(t *testing.T) {
	cache := NewJudgmentCache(10*time.Minute, 50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set("text", "instr", "resp")
				cache.Get("text", "instr")
			}
		}(i)
	}
	wg.Wait()

	if got, ok := cache.Get("text", "instr"); !ok || got != "resp" {
		t.Errorf("after concurrent access got (%q, %v)", got, ok)
	}
}
