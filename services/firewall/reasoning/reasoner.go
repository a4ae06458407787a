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
	"log/slog"

	"github.com/AleutianAI/AleutianShield/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("aleutian.shield.reasoning")

// Reasoner is the firewall's reasoning capability: free-text responses to
// {text, instruction} requests.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the pipeline serves
// multiple prompts at once and every stage that reasons shares one
// Reasoner.
type Reasoner interface {
	// Reason sends text under an instruction and returns the raw model
	// output. jsonMode requests a JSON object response where the backend
	// supports it; callers still parse defensively with ExtractJSON.
	Reason(ctx context.Context, text, instruction string, jsonMode bool) (string, error)
}

// CachedReasoner memoizes an LLM backend behind the judgment cache.
//
// Description:
//
//	Wraps an llm.LLMClient with the bounded (text, instruction) cache and
//	singleflight coalescing, so concurrent identical requests produce at
//	most one backend call. Errors are never cached; a failed call leaves
//	the cache untouched so the next attempt retries the backend.
//
// Thread Safety: This type is safe for concurrent use.
type CachedReasoner struct {
	client   llm.LLMClient
	cache    *JudgmentCache
	inflight singleflight.Group
}

// NewCachedReasoner builds a CachedReasoner. Both arguments are required;
// the cache is owned by the caller (the pipeline instance), not by this
// package.
func NewCachedReasoner(client llm.LLMClient, cache *JudgmentCache) (*CachedReasoner, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	if cache == nil {
		return nil, errors.New("cache must not be nil")
	}
	return &CachedReasoner{client: client, cache: cache}, nil
}

// Reason implements Reasoner.
func (r *CachedReasoner) Reason(ctx context.Context, text, instruction string, jsonMode bool) (string, error) {
	ctx, span := tracer.Start(ctx, "reasoning.CachedReasoner.Reason")
	defer span.End()
	// Lengths only: prompt text is untrusted and must not enter traces.
	span.SetAttributes(
		attribute.Int("text_length", len(text)),
		attribute.Bool("json_mode", jsonMode),
	)

	if cached, ok := r.cache.Get(text, instruction); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return cached, nil
	}

	key := cacheKey(text, instruction)
	resp, err, shared := r.inflight.Do(key, func() (interface{}, error) {
		temp := float32(0.0)
		out, err := r.client.Generate(ctx, text, llm.GenerationParams{
			System:      instruction,
			Temperature: &temp,
			JSONMode:    jsonMode,
		})
		if err != nil {
			return "", err
		}
		r.cache.Set(text, instruction, out)
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reasoning call failed")
		slog.Debug("reasoning call failed", "error", err, "coalesced", shared)
		return "", err
	}

	return resp.(string), nil
}

var _ Reasoner = (*CachedReasoner)(nil)
