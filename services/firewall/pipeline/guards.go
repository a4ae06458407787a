// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline wires the firewall stages into an explicit finite-state
// machine: classify, mitigate or pass through or block, generate, fast
// path or full verification, audit. The branch guards live here as pure
// functions so routing policy is testable without any capability.
package pipeline

import "github.com/AleutianAI/AleutianShield/services/firewall/datatypes"

// Route is the outcome of the post-classification branch.
type Route int

const (
	// RouteBlock short-circuits the pipeline: no mitigation, no
	// generation, no verification.
	RouteBlock Route = iota

	// RouteMitigate sends a Risky prompt through the rewriter.
	RouteMitigate

	// RoutePassThrough forwards a Safe prompt unchanged.
	RoutePassThrough
)

func (r Route) String() string {
	switch r {
	case RouteBlock:
		return "block"
	case RouteMitigate:
		return "mitigate"
	case RoutePassThrough:
		return "passthrough"
	}
	return "unknown"
}

// VerifyRoute is the outcome of the post-generation branch.
type VerifyRoute int

const (
	// RouteFastPath skips search, code validation, and the verifier.
	RouteFastPath VerifyRoute = iota

	// RouteFullVerify runs the verification coordinator.
	RouteFullVerify
)

func (r VerifyRoute) String() string {
	switch r {
	case RouteFastPath:
		return "fast"
	case RouteFullVerify:
		return "verify"
	}
	return "unknown"
}

// RouteAfterClassify decides the post-classification branch.
//
// # Description
//
// Pure function of (classification, risk score). Block wins when either
// signal says so: a Blocked label is honored even at a low score, and a
// score at or above blockThreshold overrides a lower stated label.
func RouteAfterClassify(classification datatypes.Classification, riskScore, blockThreshold float64) Route {
	if classification == datatypes.ClassificationBlocked || riskScore >= blockThreshold {
		return RouteBlock
	}
	if classification == datatypes.ClassificationRisky {
		return RouteMitigate
	}
	return RoutePassThrough
}

// RouteAfterGenerate decides the post-generation branch. Pure function
// of the risk score: below fastThreshold the response is accepted on the
// fast path without verification.
func RouteAfterGenerate(riskScore, fastThreshold float64) VerifyRoute {
	if riskScore < fastThreshold {
		return RouteFastPath
	}
	return RouteFullVerify
}
