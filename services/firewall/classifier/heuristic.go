// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier assigns a safety Judgment to an untrusted prompt.
//
// The primary path is an LLM reasoning call decoded into a strict JSON
// shape; when that call errors or its output cannot be decoded, the
// package falls back to a deterministic pattern-based judge that never
// reports a prompt as Safe it cannot vouch for.
package classifier

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

// =============================================================================
// Attack Categories
// =============================================================================

// Attack category names. These are the keys of AttackReport.Categories and
// the values listed in AttackTypes.
const (
	CategoryPromptInjection = "prompt_injection"
	CategoryJailbreaking    = "jailbreaking"
	CategoryHallucination   = "hallucination"
	CategoryLLMJacking      = "llmjacking"
)

// AttackCategories lists all categories in report order.
var AttackCategories = []string{
	CategoryPromptInjection,
	CategoryJailbreaking,
	CategoryHallucination,
	CategoryLLMJacking,
}

// Binary risk levels used by the heuristic judge. Pattern matching cannot
// grade severity, so a category is either flagged or near-clean.
const (
	heuristicDetectedScore = 0.8
	heuristicCleanScore    = 0.1
)

// defaultSignatures is the built-in signature table, used when no external
// signature file is configured or the configured file cannot be read.
var defaultSignatures = map[string][]string{
	CategoryPromptInjection: {
		`ignore.*previous.*instructions`,
		`forget.*everything`,
		`you.*are.*now`,
		`act.*as.*if`,
		`system.*prompt`,
		`override.*instructions`,
	},
	CategoryJailbreaking: {
		`how.*to.*hack`,
		`bypass.*security`,
		`exploit.*vulnerability`,
		`unauthorized.*access`,
		`steal.*password`,
		`malware.*creation`,
	},
	CategoryLLMJacking: {
		`always.*respond.*with`,
		`never.*mention`,
		`format.*output.*as`,
		`behave.*like`,
		`simulate.*personality`,
	},
}

// =============================================================================
// Signature Table
// =============================================================================

// signatureTable holds the compiled, immutable form of a signature set.
// A new table is built on every (re)load and swapped in atomically.
type signatureTable struct {
	patterns map[string][]*regexp.Regexp
}

// compileSignatures builds a signatureTable from raw pattern strings.
//
// # Description
//
// Each pattern is compiled case-insensitively. A pattern that fails to
// compile is skipped and logged; one malformed signature must not disable
// the rest of its category or the table.
func compileSignatures(raw map[string][]string, log *slog.Logger) *signatureTable {
	table := &signatureTable{patterns: make(map[string][]*regexp.Regexp, len(raw))}
	for category, sigs := range raw {
		compiled := make([]*regexp.Regexp, 0, len(sigs))
		for _, sig := range sigs {
			re, err := regexp.Compile(`(?i)` + sig)
			if err != nil {
				if log != nil {
					log.Warn("skipping malformed attack signature",
						"category", category, "pattern", sig, "error", err)
				}
				continue
			}
			compiled = append(compiled, re)
		}
		table.patterns[category] = compiled
	}
	return table
}

// =============================================================================
// Heuristic Judge
// =============================================================================

// HeuristicJudge is the deterministic pattern-based fallback judge.
//
// # Description
//
// Scores a prompt against per-category regex signature tables. Used only
// when an LLM reasoning call fails to parse; it supplies a conservative,
// reproducible attack report in place of the model's judgment. The
// hallucination category is always reported as not-detected because
// pattern matching has no external grounding to check against.
//
// # Thread Safety
//
// Safe for concurrent use. The signature table is swapped atomically on
// reload; in-flight Judge calls keep the table they started with.
type HeuristicJudge struct {
	table atomic.Pointer[signatureTable]
	log   *slog.Logger
}

// NewHeuristicJudge creates a judge backed by the built-in signature set.
func NewHeuristicJudge(log *slog.Logger) *HeuristicJudge {
	if log == nil {
		log = slog.Default()
	}
	j := &HeuristicJudge{log: log}
	j.table.Store(compileSignatures(defaultSignatures, log))
	return j
}

// LoadSignatures replaces the active signature table from a YAML file.
//
// # Description
//
// The file maps category names to lists of regex strings:
//
//	prompt_injection:
//	  - "ignore.*previous.*instructions"
//
// Malformed individual patterns are skipped with a warning. A file that
// cannot be read or parsed leaves the current table untouched and returns
// the error.
func (j *HeuristicJudge) LoadSignatures(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read signature file %s: %w", path, err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse signature file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("signature file %s defines no categories", path)
	}
	j.table.Store(compileSignatures(raw, j.log))
	j.log.Info("attack signature table reloaded", "path", path, "categories", len(raw))
	return nil
}

// Judge scores text against the active signature table.
//
// # Description
//
// Pure with respect to the active table: identical text always yields an
// identical report. Per category, detected is true when any signature
// matches; the risk score is binary (0.8 detected, 0.1 clean).
// OverallRiskScore is the maximum category score and AttackTypes lists
// the detected categories, sorted.
func (j *HeuristicJudge) Judge(text string) datatypes.AttackReport {
	table := j.table.Load()
	lower := strings.ToLower(text)

	report := datatypes.AttackReport{
		Categories: make(map[string]datatypes.AttackFinding, len(AttackCategories)),
	}
	for _, category := range AttackCategories {
		if category == CategoryHallucination {
			// Requires external grounding this judge cannot supply.
			report.Categories[category] = datatypes.AttackFinding{
				Detected:  false,
				RiskScore: 0.0,
				Reason:    "N/A",
			}
			continue
		}
		finding := datatypes.AttackFinding{
			RiskScore: heuristicCleanScore,
			Reason:    "No known signatures matched",
		}
		for _, re := range table.patterns[category] {
			if re.MatchString(lower) {
				finding = datatypes.AttackFinding{
					Detected:  true,
					RiskScore: heuristicDetectedScore,
					Reason:    fmt.Sprintf("Matched signature %q", re.String()),
				}
				break
			}
		}
		report.Categories[category] = finding
	}

	for category, finding := range report.Categories {
		if finding.RiskScore > report.OverallRiskScore {
			report.OverallRiskScore = finding.RiskScore
		}
		if finding.Detected {
			report.AttackTypes = append(report.AttackTypes, category)
		}
	}
	sort.Strings(report.AttackTypes)
	return report
}
