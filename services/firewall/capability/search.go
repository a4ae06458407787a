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
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// ShieldDocumentClassName is the Weaviate class holding the grounding
// corpus the verifier checks responses against.
const ShieldDocumentClassName = "ShieldDocument"

// defaultSearchLimit bounds how many grounding snippets one verification
// pulls back.
const defaultSearchLimit = 5

// WeaviateSearcher retrieves factual grounding context from Weaviate.
//
// # Description
//
// Runs a BM25 keyword search over the ShieldDocument class using the
// prompt and response text as the query, and joins the matched snippets
// into a single summary for the dependent verifier. No results is not an
// error: the searcher returns an empty summary and lets the verifier's
// policy decide what that means.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type WeaviateSearcher struct {
	client *weaviate.Client
	limit  int
}

// NewWeaviateSearcher creates a searcher over the given client.
func NewWeaviateSearcher(client *weaviate.Client) (*WeaviateSearcher, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	return &WeaviateSearcher{client: client, limit: defaultSearchLimit}, nil
}

var _ Searcher = (*WeaviateSearcher)(nil)

// Search retrieves grounding snippets for a (prompt, response) pair.
func (s *WeaviateSearcher) Search(ctx context.Context, prompt, response string) (datatypes.SearchResults, error) {
	ctx, span := tracer.Start(ctx, "capability.search")
	defer span.End()

	query := strings.TrimSpace(prompt + " " + response)
	if query == "" {
		return datatypes.SearchResults{}, nil
	}

	bm25 := s.client.GraphQL().Bm25ArgBuilder().WithQuery(query)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "score"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(ShieldDocumentClassName).
		WithFields(fields...).
		WithBM25(bm25).
		WithLimit(s.limit).
		Do(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "weaviate query failed")
		return datatypes.SearchResults{}, fmt.Errorf("grounding search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		span.SetStatus(codes.Error, "weaviate query error")
		return datatypes.SearchResults{}, fmt.Errorf("grounding search error: %s", result.Errors[0].Message)
	}

	snippets := extractSnippets(result.Data)
	span.SetAttributes(attribute.Int("snippets", len(snippets)))
	slog.Debug("Grounding search complete", "snippets", len(snippets))

	return datatypes.SearchResults{
		Summary: strings.Join(snippets, "\n\n"),
		Raw:     map[string]any{"documents": snippets},
	}, nil
}

// NullSearcher always reports that no context was found. Used in
// lightweight mode when no Weaviate instance is configured; the verifier
// then resolves factual claims as Unverifiable rather than trusting the
// model's own knowledge.
type NullSearcher struct{}

var _ Searcher = NullSearcher{}

// Search returns empty results.
func (NullSearcher) Search(ctx context.Context, prompt, response string) (datatypes.SearchResults, error) {
	return datatypes.SearchResults{}, nil
}

// extractSnippets pulls the content strings out of a Get response.
func extractSnippets(data map[string]models.JSONObject) []string {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	docs, ok := get[ShieldDocumentClassName].([]any)
	if !ok {
		return nil
	}
	snippets := make([]string, 0, len(docs))
	for _, doc := range docs {
		obj, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		content, ok := obj["content"].(string)
		if !ok || content == "" {
			continue
		}
		if source, ok := obj["source"].(string); ok && source != "" {
			content = fmt.Sprintf("[%s] %s", source, content)
		}
		snippets = append(snippets, content)
	}
	return snippets
}
