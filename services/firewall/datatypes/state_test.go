// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeJudgment(t *testing.T) {
	s := &State{UserPrompt: "hello"}
	s.MergeJudgment(Judgment{
		Classification: ClassificationRisky,
		RiskScore:      0.8,
		Reason:         "LLM parse error",
		AttackDetection: AttackReport{
			Categories: map[string]AttackFinding{
				"prompt_injection": {Detected: true, RiskScore: 0.8, Reason: "Pattern heuristic"},
			},
			OverallRiskScore: 0.8,
			AttackTypes:      []string{"prompt_injection"},
		},
	})

	assert.Equal(t, ClassificationRisky, s.Classification)
	assert.Equal(t, 0.8, s.RiskScore)
	assert.Equal(t, "LLM parse error", s.RiskReason)
	assert.Equal(t, "hello", s.UserPrompt, "user prompt must stay untouched")
	assert.True(t, s.AttackDetection.Categories["prompt_injection"].Detected)
}

func TestSnapshotIsolation(t *testing.T) {
	s := &State{
		UserPrompt: "p",
		AttackDetection: AttackReport{
			Categories:  map[string]AttackFinding{"jailbreaking": {Detected: true, RiskScore: 0.8}},
			AttackTypes: []string{"jailbreaking"},
		},
		WebSearchResults: &SearchResults{Summary: "ctx", Raw: map[string]any{"k": "v"}},
	}

	snap := s.Snapshot()

	// Mutating the original must not leak into the snapshot.
	s.AttackDetection.Categories["llmjacking"] = AttackFinding{Detected: true}
	s.WebSearchResults.Raw["k"] = "changed"
	s.AttackDetection.AttackTypes[0] = "other"

	require.NotNil(t, snap.WebSearchResults)
	assert.Equal(t, "v", snap.WebSearchResults.Raw["k"])
	assert.Len(t, snap.AttackDetection.Categories, 1)
	assert.Equal(t, []string{"jailbreaking"}, snap.AttackDetection.AttackTypes)
}

func TestContainsHallucination(t *testing.T) {
	assert.True(t, ContainsHallucination(VerdictLikelyHallucinated))
	assert.True(t, ContainsHallucination(Verdict("HALLUCINATED output")))
	assert.False(t, ContainsHallucination(VerdictFactuallyCorrect))
	assert.False(t, ContainsHallucination(VerdictRejected))
	assert.False(t, ContainsHallucination(""))
}

func TestClassificationValid(t *testing.T) {
	assert.True(t, ClassificationSafe.Valid())
	assert.True(t, ClassificationRisky.Valid())
	assert.True(t, ClassificationBlocked.Valid())
	assert.False(t, Classification("Harmless").Valid())
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	t.Run("fast threshold must stay below block threshold", func(t *testing.T) {
		bad := DefaultConfig()
		bad.FastPathThreshold = 0.9
		assert.Error(t, bad.Validate())
	})

	t.Run("zero cache size rejected", func(t *testing.T) {
		bad := DefaultConfig()
		bad.CacheSize = 0
		assert.Error(t, bad.Validate())
	})

	t.Run("defaults carry contract thresholds", func(t *testing.T) {
		assert.Equal(t, 0.85, cfg.BlockThreshold)
		assert.Equal(t, 0.30, cfg.FastPathThreshold)
		assert.Equal(t, 10*time.Second, cfg.AuditReadyTimeout)
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FIREWALL_PORT", "9000")
	t.Setenv("FIREWALL_BLOCK_THRESHOLD", "0.9")
	t.Setenv("FIREWALL_CACHE_TTL", "5m")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 0.9, cfg.BlockThreshold)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)

	t.Run("malformed numeric is an error", func(t *testing.T) {
		t.Setenv("FIREWALL_BLOCK_THRESHOLD", "ninety")
		_, err := ConfigFromEnv()
		assert.Error(t, err)
	})
}
