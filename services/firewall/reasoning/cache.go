// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reasoning wraps the LLM backend as the firewall's reasoning
// capability: {text, instruction} requests, bounded memoization, and
// defensive JSON extraction from free-text model output.
package reasoning

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// JudgmentCache caches reasoning responses with LRU eviction.
//
// Description:
//
//	Provides a thread-safe LRU cache for reasoning-capability responses
//	with TTL expiration. Cache keys are computed from the request text and
//	the instruction, so the same text under a different instruction is a
//	distinct entry.
//
//	The cache is the only resource shared across concurrent pipeline
//	invocations; it serializes its own reads and writes internally. It is
//	explicitly constructed and injected, never reached as ambient global
//	state, and is not persisted across restarts.
//
// Thread Safety: This type is safe for concurrent use.
type JudgmentCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int

	// Metrics
	hits   atomic.Int64
	misses atomic.Int64

	// Optional external counters, e.g. Prometheus.
	onHit  func()
	onMiss func()
}

// CacheOption configures optional cache behavior.
type CacheOption func(*JudgmentCache)

// WithCacheMetrics registers callbacks fired on every hit and miss.
// Callbacks must be fast and must not call back into the cache.
func WithCacheMetrics(hit, miss func()) CacheOption {
	return func(c *JudgmentCache) {
		c.onHit = hit
		c.onMiss = miss
	}
}

// cacheEntry stores one memoized reasoning response.
type cacheEntry struct {
	key       string
	response  string
	expiresAt time.Time
}

// NewJudgmentCache creates a cache with TTL and max size.
//
// Inputs:
//
//	ttl - How long cached responses are valid. Must be > 0.
//	maxSize - Maximum number of entries before LRU eviction. Must be > 0.
//
// Thread Safety: The returned cache is safe for concurrent use.
func NewJudgmentCache(ttl time.Duration, maxSize int, opts ...CacheOption) *JudgmentCache {
	c := &JudgmentCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a cached response if valid (not expired).
func (c *JudgmentCache) Get(text, instruction string) (string, bool) {
	key := cacheKey(text, instruction)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		c.recordMiss()
		return "", false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		// Expired - remove lazily
		c.removeElement(elem)
		c.recordMiss()
		return "", false
	}

	// Move to front (most recently used)
	c.lru.MoveToFront(elem)
	c.recordHit()
	return entry.response, true
}

// Set stores a reasoning response, evicting LRU entries if at capacity.
func (c *JudgmentCache) Set(text, instruction, response string) {
	key := cacheKey(text, instruction)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Update existing entry
	if elem, exists := c.entries[key]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.response = response
		entry.expiresAt = time.Now().Add(c.ttl)
		c.lru.MoveToFront(elem)
		return
	}

	// Evict if at capacity
	for c.lru.Len() >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry{
		key:       key,
		response:  response,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.entries[key] = c.lru.PushFront(entry)
}

// Size returns the current number of entries in the cache.
func (c *JudgmentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// HitRate returns the cache hit rate (0.0-1.0), 0 before any lookup.
func (c *JudgmentCache) HitRate() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Hits returns the total number of cache hits.
func (c *JudgmentCache) Hits() int64 { return c.hits.Load() }

// Misses returns the total number of cache misses.
func (c *JudgmentCache) Misses() int64 { return c.misses.Load() }

func (c *JudgmentCache) recordHit() {
	c.hits.Add(1)
	if c.onHit != nil {
		c.onHit()
	}
}

func (c *JudgmentCache) recordMiss() {
	c.misses.Add(1)
	if c.onMiss != nil {
		c.onMiss()
	}
}

// cacheKey hashes (text, instruction) into a stable key.
func cacheKey(text, instruction string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte("|"))
	h.Write([]byte(instruction))
	return hex.EncodeToString(h.Sum(nil))
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *JudgmentCache) evictOldest() {
	if elem := c.lru.Back(); elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from both map and list.
// Must be called with lock held.
func (c *JudgmentCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
}
