// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scanner inspects uploaded documents for sensitive data:
// structured formats, known secret shapes, and high-entropy strings.
// Unsafe documents produce a durable report; clean documents are
// archived. The scanner shares no control flow with the prompt pipeline.
package scanner

import "regexp"

// SecretPrefix marks findings that indicate leaked credentials rather
// than ordinary structured data.
const SecretPrefix = "SECRET: "

// formatPatterns match common structured data. Indicative, not
// conclusive: a match raises a finding, not an unsafe verdict by itself.
var formatPatterns = map[string]*regexp.Regexp{
	"Email Address": regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	"Phone Number (US)": regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	"Date": regexp.MustCompile(`\d{4}[-/]\d{2}[-/]\d{2}|\d{2}[-/]\d{2}[-/]\d{4}`),
	"Invoice Number": regexp.MustCompile(`(?i)\b(invoice\s*#?|inv\s*#?|receipt\s*#?)\s*[A-Z0-9-]+\b`),
}

// secretPatterns match known credential shapes. These can false-positive
// on random data; any match marks the document unsafe regardless.
var secretPatterns = map[string]*regexp.Regexp{
	"Google API Key": regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
	"AWS Access Key ID": regexp.MustCompile(`(A3T[A-Z0-9]|AKIA|AGPA|AROA|ASCA|ASIA)[A-Z0-9]{16}`),
	"GitHub Token": regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`),
	"Stripe API Key": regexp.MustCompile(`(sk|pk)_(test|live)_[0-9a-zA-Z]{24}`),
	"Slack Token": regexp.MustCompile(`xox[pbaosr]-[0-9]{12}-[0-9]{12}-[0-9]{12}-[a-z0-9]{32}`),
	"Twilio API Key": regexp.MustCompile(`SK[0-9a-fA-F]{32}`),
	"Private Key Block": regexp.MustCompile(`(?s)-----BEGIN ((RSA|OPENSSH|EC|PGP) )?PRIVATE KEY-----`),
	"JWT": regexp.MustCompile(`ey[A-Za-z0-9-_=]+\.ey[A-Za-z0-9-_=]+\.[A-Za-z0-9-_.+/=]+`),

	// Catch-all: a secret-related keyword, an assignment, then a
	// plausible secret value.
	"Generic Secret (Keyword-Based)": regexp.MustCompile(
		`(?i)(password|passwd|pwd|secret|token|auth|bearer|api_key|apikey|access_key|secret_key|client_id|client_secret)\s*[=:]\s*["']?([A-Za-z0-9\-_.~+/=]{16,64})["']?`),
}
