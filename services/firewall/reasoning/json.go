// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no decodable JSON object is found in a
// reasoning response.
var ErrNoJSON = errors.New("no JSON object found in reasoning output")

// ExtractJSON locates and decodes the first JSON object in model output.
//
// Description:
//
//	Models asked for "ONLY JSON" still wrap output in markdown fences,
//	preambles ("Here is my analysis:"), or trailing chatter. ExtractJSON
//	strips fences, then scans for the first balanced top-level object,
//	honoring braces inside string literals and escaped quotes.
//
// Inputs:
//
//	raw - Full model output.
//	v - Destination for json.Unmarshal. Must be a non-nil pointer.
//
// Outputs:
//
//	error - ErrNoJSON when no object is present, or the unmarshal error
//	for a malformed object. Callers treat any error as a ParseError and
//	take their documented conservative fallback.
func ExtractJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)

	// Strip a markdown code fence, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	obj, ok := firstObject(s)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(obj), v)
}

// firstObject returns the first balanced {...} region of s.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
