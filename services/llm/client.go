// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for the LLM backends the firewall treats as
// opaque reasoning and generation capabilities.
package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// System carries the instruction half of a {text, instruction}
	// reasoning request. Empty means the backend default persona.
	System string `json:"system,omitempty"`

	// JSONMode asks the backend for a JSON object response where the API
	// supports it (Ollama format=json, OpenAI response_format). Backends
	// without native JSON mode rely on the instruction alone; callers
	// must still parse defensively.
	JSONMode bool `json:"json_mode,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
