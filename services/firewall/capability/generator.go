// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package capability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianShield/services/llm"
)

// LLMGenerator answers a sanitized prompt with the configured LLM backend.
//
// Unlike the firewall's reasoning calls, generation is not memoized and
// not forced deterministic; the backend's own sampling defaults apply.
type LLMGenerator struct {
	client llm.LLMClient
}

// NewLLMGenerator creates a generator over the given backend client.
func NewLLMGenerator(client llm.LLMClient) (*LLMGenerator, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	return &LLMGenerator{client: client}, nil
}

var _ Generator = (*LLMGenerator)(nil)

// Generate obtains a free-text response for prompt. Errors propagate to
// the caller; the pipeline treats a failed generation as terminal.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "capability.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.length", len(prompt)))

	response, err := g.client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		span.SetStatus(codes.Error, "generation call failed")
		return "", fmt.Errorf("generate response: %w", err)
	}

	span.SetAttributes(attribute.Int("response.length", len(response)))
	return response, nil
}
