// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package verify coordinates full verification of a generated response:
// a factual-grounding search and a code-safety check run concurrently,
// then a dependent fact-check bound to the retrieved search context.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianShield/services/firewall/capability"
	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
	"github.com/AleutianAI/AleutianShield/services/firewall/reasoning"
)

var tracer = otel.Tracer("aleutian.shield.verify")

// workerLimit bounds the fan-out pool. Two independent tasks run today;
// the limit leaves headroom without unbounding it.
const workerLimit = 3

// noSearchContext is the sentinel handed to the verifier when search
// found nothing or failed. The verifier's instruction makes it treat an
// absent context as grounds for Unverifiable, not an excuse to free-wheel
// on internal knowledge.
const noSearchContext = "No relevant external search results were found for this query."

// verdictParseFailReason is the reason recorded when the verifier's own
// reasoning output cannot be decoded.
const verdictParseFailReason = "Parse fail or Insufficient LLM reasoning"

// codeVerdictDegraded is recorded when the code-safety sub-task failed.
const codeVerdictDegraded = "Unverifiable"

// verifierInstruction binds the fact-check verdict solely to the
// retrieved context. The three-verdict taxonomy is enumerated explicitly
// so the model cannot invent labels.
const verifierInstruction = `You are a strict, objective fact-checking AI. Evaluate the "LLM's Response to Verify" for factual accuracy and potential hallucinations.

**Your decision MUST be based SOLELY on the "EXTERNAL FACTUAL CONTEXT" provided.**
**DO NOT use any prior internal knowledge you might possess.**

Verdict rules:
1. "Factually correct": the response's claims are explicitly supported by, or perfectly consistent with, the EXTERNAL FACTUAL CONTEXT; or the response contains no factual claims and no factual errors.
2. "Likely hallucinated": the response makes factual claims that directly contradict the EXTERNAL FACTUAL CONTEXT, or states things clearly false given it.
3. "Unverifiable": the response's factual claims cannot be confirmed or denied by the EXTERNAL FACTUAL CONTEXT (it is silent or too vague).

Provide a concise "reason" referencing specific points in the context or the response.

Respond with ONLY valid JSON (no markdown, no preamble):
{"verdict":"Factually correct|Likely hallucinated|Unverifiable","reason":"brief"}`

// Coordinator runs the full verification stage.
//
// # Description
//
// Fan-out/join: the grounding search and the code-safety validation are
// independent and run concurrently; the fact-check verifier depends on
// the search result and runs after the join. Sub-task failures degrade
// that sub-task's contribution instead of aborting the stage; partial
// verification is tolerated, a silent full bypass is not.
//
// # Thread Safety
//
// Safe for concurrent use. Each Verify call owns its result slots; the
// worker goroutines return values through them and never touch shared
// state.
type Coordinator struct {
	reasoner  reasoning.Reasoner
	searcher  capability.Searcher
	validator capability.CodeValidator
	timeout   time.Duration
	log       *slog.Logger
}

// NewCoordinator creates a verification coordinator.
//
// # Inputs
//
//   - reasoner: Reasoning capability for the dependent fact-check.
//   - searcher: Grounding search capability.
//   - validator: Code-safety capability.
//   - timeout: Per-capability-call timeout. A stalled call degrades that
//     sub-task instead of hanging the pipeline.
func NewCoordinator(
	reasoner reasoning.Reasoner,
	searcher capability.Searcher,
	validator capability.CodeValidator,
	timeout time.Duration,
	log *slog.Logger,
) (*Coordinator, error) {
	if reasoner == nil {
		return nil, errors.New("reasoner must not be nil")
	}
	if searcher == nil {
		return nil, errors.New("searcher must not be nil")
	}
	if validator == nil {
		return nil, errors.New("validator must not be nil")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		reasoner:  reasoner,
		searcher:  searcher,
		validator: validator,
		timeout:   timeout,
		log:       log,
	}, nil
}

// Verify runs full verification of a (prompt, response) pair.
//
// # Description
//
// Dispatches search and code validation concurrently, joins both, then
// invokes onSearch (when non-nil and search succeeded) before the
// dependent verifier runs, preserving the ordering guarantee that the
// search result reaches pipeline state ahead of the verdict.
//
// # Outputs
//
//   - datatypes.VerificationResult: Always populated. The verdict is one
//     of the three fact-check labels, degraded to Unverifiable when the
//     verifier itself could not be trusted.
func (c *Coordinator) Verify(
	ctx context.Context,
	prompt, response string,
	onSearch func(datatypes.SearchResults),
) datatypes.VerificationResult {
	ctx, span := tracer.Start(ctx, "verify.full")
	defer span.End()

	var (
		search    datatypes.SearchResults
		searchErr error

		codeVerdict  string
		codeFragment string
		codeErr      error
	)

	var g errgroup.Group
	g.SetLimit(workerLimit)

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		search, searchErr = c.searcher.Search(sctx, prompt, response)
		return nil
	})
	g.Go(func() error {
		vctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		codeVerdict, codeFragment, codeErr = c.validator.Validate(vctx, prompt, response)
		return nil
	})
	// Workers report through their slots; Wait only joins.
	_ = g.Wait()

	if searchErr != nil {
		c.log.Warn("grounding search failed, verifying without external context",
			"error", searchErr)
		search = datatypes.SearchResults{}
	}
	if codeErr != nil {
		c.log.Warn("code validation failed, degrading code verdict",
			"error", codeErr)
		codeVerdict = codeVerdictDegraded
		codeFragment = ""
	}

	if onSearch != nil && searchErr == nil {
		onSearch(search)
	}

	verdict, reason := c.runVerifier(ctx, prompt, response, search.Summary)

	span.SetAttributes(
		attribute.String("verdict", string(verdict)),
		attribute.Bool("search.failed", searchErr != nil),
		attribute.Bool("code.failed", codeErr != nil),
	)

	return datatypes.VerificationResult{
		Verdict:      verdict,
		Reason:       reason,
		CodeVerdict:  codeVerdict,
		CodeFragment: codeFragment,
	}
}

// runVerifier executes the dependent fact-check against the search
// context. Any failure yields Unverifiable, never Factually correct.
func (c *Coordinator) runVerifier(ctx context.Context, prompt, response, searchContext string) (datatypes.Verdict, string) {
	ctx, span := tracer.Start(ctx, "verify.fact_check")
	defer span.End()

	if searchContext == "" {
		searchContext = noSearchContext
	}

	text := fmt.Sprintf(
		"Original User Prompt:\n%s\n\nLLM's Response to Verify:\n%s\n\n"+
			"--- EXTERNAL FACTUAL CONTEXT (from web search) ---\n%s\n"+
			"---------------------------------------------------\n",
		prompt, response, searchContext,
	)

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.reasoner.Reason(rctx, text, verifierInstruction, true)
	if err != nil {
		span.SetStatus(codes.Error, "verifier reasoning call failed")
		c.log.Warn("verifier reasoning call failed", "error", err)
		return datatypes.VerdictUnverifiable, verdictParseFailReason
	}

	var decoded struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := reasoning.ExtractJSON(raw, &decoded); err != nil {
		span.SetStatus(codes.Error, "verifier output decode failed")
		c.log.Warn("verifier output not decodable", "error", err)
		return datatypes.VerdictUnverifiable, verdictParseFailReason
	}

	verdict := datatypes.Verdict(decoded.Verdict)
	switch verdict {
	case datatypes.VerdictFactuallyCorrect, datatypes.VerdictLikelyHallucinated, datatypes.VerdictUnverifiable:
	default:
		span.SetStatus(codes.Error, "unknown verdict label")
		c.log.Warn("verifier returned unknown verdict", "verdict", decoded.Verdict)
		return datatypes.VerdictUnverifiable, verdictParseFailReason
	}

	reason := decoded.Reason
	if reason == "" {
		reason = verdictParseFailReason
	}
	return verdict, reason
}
