// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    string
	}{
		{
			name:  "clean JSON",
			input: `{"classification":"Safe"}`,
			want:  "Safe",
		},
		{
			name:  "JSON with whitespace",
			input: `   {"classification":"Risky"}   `,
			want:  "Risky",
		},
		{
			name:  "markdown JSON block",
			input: "```json\n{\"classification\":\"Safe\"}\n```",
			want:  "Safe",
		},
		{
			name:  "generic code block",
			input: "```\n{\"classification\":\"Blocked\"}\n```",
			want:  "Blocked",
		},
		{
			name:  "JSON with preamble",
			input: "Here is my analysis:\n{\"classification\":\"Safe\"}",
			want:  "Safe",
		},
		{
			name:  "JSON with postamble",
			input: "{\"classification\":\"Safe\"}\nHope this helps!",
			want:  "Safe",
		},
		{
			name:  "nested braces in string",
			input: `{"reason":"something {with} braces","classification":"Risky"}`,
			want:  "Risky",
		},
		{
			name:  "escaped quotes in string",
			input: `{"reason":"he said \"hello\"","classification":"Safe"}`,
			want:  "Safe",
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			input:   `{"classification":"Safe"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Classification string `json:"classification"`
			}
			err := ExtractJSON(tt.input, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Classification != tt.want {
				t.Errorf("classification = %q, want %q", out.Classification, tt.want)
			}
		})
	}
}

func TestExtractJSON_NoObjectSentinel(t *testing.T) {
	var v map[string]any
	err := ExtractJSON("plain text", &v)
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}
