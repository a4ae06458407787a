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
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianShield/services/firewall/reasoning"
)

// VerdictNoCode is returned when the response contains no code to judge.
const VerdictNoCode = "No code detected"

// codeValidationInstruction judges one extracted fragment.
const codeValidationInstruction = `You are a code safety reviewer for an LLM firewall.

Examine the code fragment for dangerous behavior: destructive commands,
credential exfiltration, network backdoors, obfuscated payloads, or
instructions that would harm the system running them.

Respond with ONLY valid JSON (no markdown, no preamble):
{"verdict":"Safe code|Potentially unsafe code","reason":"brief"}`

// codeFenceRe matches a fenced code block with an optional language tag.
var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n?(.*?)```")

// LLMCodeValidator judges code fragments embedded in a response.
//
// # Description
//
// Extracts the first fenced code block from the response and asks the
// reasoning capability whether it is safe to show the user. Responses
// without fenced code short-circuit to VerdictNoCode without a
// capability call.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type LLMCodeValidator struct {
	reasoner reasoning.Reasoner
}

// NewLLMCodeValidator creates a validator over the given reasoner.
func NewLLMCodeValidator(reasoner reasoning.Reasoner) (*LLMCodeValidator, error) {
	if reasoner == nil {
		return nil, errors.New("reasoner must not be nil")
	}
	return &LLMCodeValidator{reasoner: reasoner}, nil
}

var _ CodeValidator = (*LLMCodeValidator)(nil)

// Validate judges the code content of a response.
func (v *LLMCodeValidator) Validate(ctx context.Context, prompt, response string) (string, string, error) {
	ctx, span := tracer.Start(ctx, "capability.validate_code")
	defer span.End()

	fragment := ExtractCodeFragment(response)
	if fragment == "" {
		span.SetAttributes(attribute.Bool("code.found", false))
		return VerdictNoCode, "", nil
	}
	span.SetAttributes(attribute.Bool("code.found", true),
		attribute.Int("fragment.length", len(fragment)))

	text := fmt.Sprintf("Original prompt:\n%s\n\nCode fragment to review:\n%s", prompt, fragment)
	raw, err := v.reasoner.Reason(ctx, text, codeValidationInstruction, true)
	if err != nil {
		span.SetStatus(codes.Error, "validation call failed")
		return "", "", fmt.Errorf("validate code: %w", err)
	}

	var decoded struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := reasoning.ExtractJSON(raw, &decoded); err != nil {
		span.SetStatus(codes.Error, "validation decode failed")
		return "", "", fmt.Errorf("validate code: %w", err)
	}
	if decoded.Verdict == "" {
		span.SetStatus(codes.Error, "empty verdict")
		return "", "", errors.New("validate code: capability returned an empty verdict")
	}

	verdict := decoded.Verdict
	if decoded.Reason != "" {
		verdict = fmt.Sprintf("%s: %s", decoded.Verdict, decoded.Reason)
	}
	return verdict, fragment, nil
}

// ExtractCodeFragment returns the first fenced code block in text, or ""
// when there is none.
func ExtractCodeFragment(text string) string {
	match := codeFenceRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}
