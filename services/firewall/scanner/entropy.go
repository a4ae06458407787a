// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scanner

import (
	"math"
	"regexp"
)

// Entropy detection bounds: candidate tokens are alphanumeric strings of
// this length range, flagged above the bit threshold. Shorter strings
// have too little signal; longer ones are usually encoded blobs already
// caught by the shape patterns.
const (
	entropyMinLen    = 20
	entropyMaxLen    = 64
	entropyThreshold = 4.5
)

// tokenSplitRe separates candidate tokens on whitespace and common
// punctuation.
var tokenSplitRe = regexp.MustCompile(`[\s'".,;=()\[\]{}]`)

// ShannonEntropy returns the Shannon entropy of s in bits per byte.
// Empty input has zero entropy.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0.0
	}
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	entropy := 0.0
	length := float64(len(s))
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// CountHighEntropyStrings counts tokens in text that look like random
// secrets: alphanumeric, within the length bounds, and above the
// entropy threshold.
func CountHighEntropyStrings(text string) int {
	count := 0
	for _, token := range tokenSplitRe.Split(text, -1) {
		if len(token) < entropyMinLen || len(token) > entropyMaxLen {
			continue
		}
		if !isAlphanumeric(token) {
			continue
		}
		if ShannonEntropy(token) > entropyThreshold {
			count++
		}
	}
	return count
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
