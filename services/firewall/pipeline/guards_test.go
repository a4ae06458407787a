// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"testing"

	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
)

func TestRouteAfterClassify(t *testing.T) {
	const blockT = 0.85

	tests := []struct {
		name           string
		classification datatypes.Classification
		riskScore      float64
		want           Route
	}{
		{
			name:           "safe low score passes through",
			classification: datatypes.ClassificationSafe,
			riskScore:      0.1,
			want:           RoutePassThrough,
		},
		{
			name:           "risky routes to mitigation",
			classification: datatypes.ClassificationRisky,
			riskScore:      0.5,
			want:           RouteMitigate,
		},
		{
			name:           "blocked label honored at low score",
			classification: datatypes.ClassificationBlocked,
			riskScore:      0.1,
			want:           RouteBlock,
		},
		{
			name:           "score at threshold overrides safe label",
			classification: datatypes.ClassificationSafe,
			riskScore:      0.85,
			want:           RouteBlock,
		},
		{
			name:           "score above threshold overrides risky label",
			classification: datatypes.ClassificationRisky,
			riskScore:      0.99,
			want:           RouteBlock,
		},
		{
			name:           "risky just below threshold mitigates",
			classification: datatypes.ClassificationRisky,
			riskScore:      0.84,
			want:           RouteMitigate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RouteAfterClassify(tt.classification, tt.riskScore, blockT)
			if got != tt.want {
				t.Errorf("RouteAfterClassify(%v, %v) = %v, want %v",
					tt.classification, tt.riskScore, got, tt.want)
			}
		})
	}
}

func TestRouteAfterGenerate(t *testing.T) {
	const fastT = 0.30

	tests := []struct {
		name      string
		riskScore float64
		want      VerifyRoute
	}{
		{name: "low risk takes fast path", riskScore: 0.1, want: RouteFastPath},
		{name: "at threshold runs full verification", riskScore: 0.30, want: RouteFullVerify},
		{name: "high risk runs full verification", riskScore: 0.8, want: RouteFullVerify},
		{name: "zero risk takes fast path", riskScore: 0.0, want: RouteFastPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RouteAfterGenerate(tt.riskScore, fastT); got != tt.want {
				t.Errorf("RouteAfterGenerate(%v) = %v, want %v", tt.riskScore, got, tt.want)
			}
		})
	}
}
