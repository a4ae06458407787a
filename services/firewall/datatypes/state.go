// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the data model shared across the firewall
// pipeline: the mutable State record, the immutable Judgment and
// VerificationResult values merged into it, and the AuditEvent projection
// handed to the audit sink.
package datatypes

import (
	"strings"
	"time"
)

// =============================================================================
// Classification and Verdict Enums
// =============================================================================

// Classification is the safety label assigned to a prompt by the classifier.
type Classification string

const (
	ClassificationSafe    Classification = "Safe"
	ClassificationRisky   Classification = "Risky"
	ClassificationBlocked Classification = "Blocked"
)

// Valid reports whether c is one of the three known labels.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationSafe, ClassificationRisky, ClassificationBlocked:
		return true
	}
	return false
}

// Verdict is the factual-accuracy outcome of verification, or a terminal
// pipeline outcome. String values are the wire values shown to callers and
// persisted in audit events.
type Verdict string

const (
	// VerdictFactuallyCorrect means the response's claims are supported by
	// or consistent with the retrieved search context, or the response
	// contains no checkable claims and no errors.
	VerdictFactuallyCorrect Verdict = "Factually correct"

	// VerdictLikelyHallucinated means the response contradicts the
	// retrieved search context.
	VerdictLikelyHallucinated Verdict = "Likely hallucinated"

	// VerdictUnverifiable means the search context is silent or too vague
	// to confirm or deny the response's claims. It is also the fail-safe
	// default when the verifier's own reasoning call cannot be parsed.
	VerdictUnverifiable Verdict = "Unverifiable"

	// VerdictRejected is the terminal verdict of a blocked prompt.
	VerdictRejected Verdict = "Rejected"

	// VerdictFastVerified is assigned on the fast path, when risk is low
	// enough that full verification is skipped.
	VerdictFastVerified Verdict = "Likely factual (Fast Verified)"
)

// CodeVerdictSkipped is the code_verdict value recorded on the fast path.
const CodeVerdictSkipped = "Skipped (Fast Path)"

// Block node constants. The blocked prompt never reaches a capability, so
// these placeholders are what the caller and the audit trail see.
const (
	BlockedPrompt   = "[BLOCKED]"
	BlockedResponse = "Blocked."
)

// =============================================================================
// Attack Detection
// =============================================================================

// AttackFinding is one category's sub-score inside an attack report.
type AttackFinding struct {
	Detected  bool    `json:"detected"`
	RiskScore float64 `json:"risk_score"`
	Reason    string  `json:"reason"`
}

// AttackReport maps attack categories (prompt_injection, jailbreaking,
// llmjacking, hallucination) to findings, with derived aggregates.
type AttackReport struct {
	Categories map[string]AttackFinding `json:"categories"`

	// OverallRiskScore is the maximum category risk score, 0.0 when empty.
	OverallRiskScore float64 `json:"overall_risk_score"`

	// AttackTypes lists the categories with Detected=true, sorted.
	AttackTypes []string `json:"attack_types"`
}

// =============================================================================
// Stage Outputs
// =============================================================================

// Judgment is the classifier's output for one prompt. Created per
// invocation, immutable, merged into State and discarded.
type Judgment struct {
	Classification  Classification `json:"classification"`
	RiskScore       float64        `json:"risk_score"`
	Reason          string         `json:"reason"`
	AttackDetection AttackReport   `json:"attack_detection"`
}

// VerificationResult is the verification coordinator's output, merged into
// State exactly once.
type VerificationResult struct {
	Verdict      Verdict `json:"verdict"`
	Reason       string  `json:"reason"`
	CodeVerdict  string  `json:"code_verdict,omitempty"`
	CodeFragment string  `json:"code_fragment,omitempty"`
}

// SearchResults holds the factual-grounding search output for one
// (prompt, response) pair.
type SearchResults struct {
	Summary string         `json:"summary"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// =============================================================================
// Pipeline State
// =============================================================================

// State is the single mutable record threaded through the pipeline.
//
// # Invariants
//
// Fields are only ever added or overwritten, never removed, by exactly one
// stage each. UserPrompt is set once at entry and immutable thereafter.
// Verdict is set by exactly one of block, fast path, or the verification
// coordinator, never twice.
//
// # Thread Safety
//
// State is mutated only by the single orchestrating control flow. Worker
// tasks return values; they never mutate State directly.
type State struct {
	RequestID        string         `json:"request_id"`
	UserPrompt       string         `json:"user_prompt"`
	Classification   Classification `json:"classification,omitempty"`
	RiskScore        float64        `json:"risk_score"`
	RiskReason       string         `json:"risk_reason,omitempty"`
	FinalPrompt      string         `json:"final_prompt,omitempty"`
	LLMResponse      string         `json:"llm_response,omitempty"`
	Verdict          Verdict        `json:"verdict,omitempty"`
	VerdictReason    string         `json:"verdict_reason,omitempty"`
	CodeVerdict      string         `json:"code_verdict,omitempty"`
	CodeFragment     string         `json:"code_fragment,omitempty"`
	AttackDetection  AttackReport   `json:"attack_detection,omitempty"`
	WebSearchResults *SearchResults `json:"web_search_results,omitempty"`
	AuditFlag        bool           `json:"audit_flag"`
}

// MergeJudgment copies a classifier Judgment into the state.
func (s *State) MergeJudgment(j Judgment) {
	s.Classification = j.Classification
	s.RiskScore = j.RiskScore
	s.RiskReason = j.Reason
	s.AttackDetection = j.AttackDetection
}

// MergeVerification copies a VerificationResult into the state.
func (s *State) MergeVerification(v VerificationResult) {
	s.Verdict = v.Verdict
	s.VerdictReason = v.Reason
	s.CodeVerdict = v.CodeVerdict
	s.CodeFragment = v.CodeFragment
}

// Snapshot returns a copy of the state safe to hand outside the pipeline
// goroutine. The AttackDetection map and search results are copied.
func (s *State) Snapshot() State {
	out := *s
	if s.AttackDetection.Categories != nil {
		cats := make(map[string]AttackFinding, len(s.AttackDetection.Categories))
		for k, v := range s.AttackDetection.Categories {
			cats[k] = v
		}
		out.AttackDetection.Categories = cats
	}
	if s.AttackDetection.AttackTypes != nil {
		out.AttackDetection.AttackTypes = append([]string(nil), s.AttackDetection.AttackTypes...)
	}
	if s.WebSearchResults != nil {
		sr := *s.WebSearchResults
		if s.WebSearchResults.Raw != nil {
			raw := make(map[string]any, len(s.WebSearchResults.Raw))
			for k, v := range s.WebSearchResults.Raw {
				raw[k] = v
			}
			sr.Raw = raw
		}
		out.WebSearchResults = &sr
	}
	return out
}

// =============================================================================
// Audit Event
// =============================================================================

// AuditEvent is a point-in-time projection of State created by the audit
// gate. After handoff to the sink the pipeline holds no reference to it.
type AuditEvent struct {
	Timestamp      time.Time      `json:"timestamp"`
	RequestID      string         `json:"request_id"`
	Prompt         string         `json:"prompt"`
	Classification Classification `json:"classification"`
	RiskScore      float64        `json:"risk_score"`

	// AttackFlags is the serialized AttackReport, stored as a JSON string
	// so sinks with flat schemas can persist it unchanged.
	AttackFlags string `json:"attack_flags"`

	Verdict Verdict `json:"verdict"`
}

// =============================================================================
// Stage Events
// =============================================================================

// Stage names emitted by the pipeline, in graph order.
const (
	StageAnalysis    = "analysis"
	StageRewrite     = "rewrite"
	StagePassthrough = "passthrough"
	StageBlock       = "block"
	StageLLM         = "llm"
	StageVerify      = "verify"
	StageFast        = "fast"
	StageAudit       = "audit"
)

// StageEvent reports completion of one pipeline node to the presentation
// layer. The final event of a run carries Final=true and the full state
// snapshot.
type StageEvent struct {
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	State     State     `json:"state"`
	Final     bool      `json:"final"`

	// Err is set when the pipeline aborted at this stage (fail-closed
	// mitigator or generator errors). Terminal when non-empty.
	Err string `json:"error,omitempty"`
}

// ContainsHallucination reports whether a verdict string mentions
// hallucination, case-insensitively. Used by the audit gating predicate.
func ContainsHallucination(v Verdict) bool {
	return strings.Contains(strings.ToLower(string(v)), "hallucinat")
}
