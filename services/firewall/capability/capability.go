// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package capability holds the pipeline's external collaborators: prompt
// mitigation, response generation, factual-grounding search, and code
// validation. The pipeline depends on the interfaces here; the concrete
// implementations wrap an LLM backend or a Weaviate instance.
package capability

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

var tracer = otel.Tracer("aleutian.shield.capability")

// Mitigator rewrites a risky prompt into a sanitized prompt.
//
// Implementations must fail closed: a capability error propagates to the
// caller rather than silently passing the original prompt through.
type Mitigator interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// Generator obtains a response for a sanitized prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher retrieves external factual context for a (prompt, response)
// pair. An empty Summary with a nil error is a valid outcome meaning no
// relevant context was found.
type Searcher interface {
	Search(ctx context.Context, prompt, response string) (datatypes.SearchResults, error)
}

// CodeValidator inspects a response for code fragments and judges their
// safety. When the response contains no code the verdict says so and the
// fragment is empty.
type CodeValidator interface {
	Validate(ctx context.Context, prompt, response string) (verdict, fragment string, err error)
}
