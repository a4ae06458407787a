// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package capability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetShieldDocumentSchema returns the class definition backing grounding
// search. Vectorizer is "none": retrieval is keyword (BM25) only, so no
// embedding module is required on the Weaviate side.
func GetShieldDocumentSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ShieldDocumentClassName,
		Description: "A reference document used to ground response verification.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The main content of the document.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The original file path or URL of the document.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureShieldSchema creates the grounding class if it does not exist.
// Existing classes are left untouched.
func EnsureShieldSchema(ctx context.Context, client *weaviate.Client, log *slog.Logger) error {
	class := GetShieldDocumentSchema()
	log.Info("Checking schema", "class", class.Class)

	// The client returns an error when the class is absent.
	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		log.Info("Schema already exists", "class", class.Class)
		return nil
	}

	log.Info("Schema not found, creating it...", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create schema for class %s: %w", class.Class, err)
	}
	log.Info("Successfully created schema", "class", class.Class)
	return nil
}
