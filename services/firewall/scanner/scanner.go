// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scanner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("aleutian.shield.scanner")

// Report is the outcome of scanning one document.
type Report struct {
	Filename  string         `json:"filename"`
	Timestamp time.Time      `json:"upload_timestamp"`
	Findings  map[string]int `json:"findings"`
	Unsafe    bool           `json:"unsafe"`
}

// ReportStore durably stores reports for unsafe documents.
type ReportStore interface {
	Save(ctx context.Context, report Report) error
}

// Archiver stores clean documents for retention.
type Archiver interface {
	Archive(ctx context.Context, filename string, content []byte) error
}

// Analyze scans text and returns finding counts keyed by pattern name.
//
// # Description
//
// Three passes: structured-format patterns, secret-shape patterns
// (finding keys carry the SECRET: prefix), and high-entropy token
// counting. Pure function of the text.
func Analyze(text string) map[string]int {
	findings := make(map[string]int)

	for name, re := range formatPatterns {
		if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
			findings[name] = n
		}
	}
	for name, re := range secretPatterns {
		if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
			findings[SecretPrefix+name] = n
		}
	}
	if n := CountHighEntropyStrings(text); n > 0 {
		findings[SecretPrefix+"High-Entropy String"] = n
	}

	return findings
}

// IsUnsafe reports whether any finding indicates a leaked secret.
// Structured data alone (emails, dates) does not make a document unsafe.
func IsUnsafe(findings map[string]int) bool {
	for name := range findings {
		if strings.HasPrefix(name, SecretPrefix) {
			return true
		}
	}
	return false
}

// Scanner scans documents and routes them by outcome.
//
// # Description
//
// Unsafe documents produce a durable report in the report store; the
// document content itself is not retained. Clean documents are archived
// verbatim. Storage failures are returned to the caller; a document
// whose routing failed is treated as not fully processed.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type Scanner struct {
	reports ReportStore
	archive Archiver
	log     *slog.Logger
}

// NewScanner creates a scanner over the given stores.
func NewScanner(reports ReportStore, archive Archiver, log *slog.Logger) (*Scanner, error) {
	if reports == nil {
		return nil, errors.New("reports store must not be nil")
	}
	if archive == nil {
		return nil, errors.New("archiver must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{reports: reports, archive: archive, log: log}, nil
}

// Scan analyzes one document and routes it.
func (s *Scanner) Scan(ctx context.Context, filename string, content []byte) (Report, error) {
	ctx, span := tracer.Start(ctx, "scanner.scan")
	defer span.End()

	findings := Analyze(string(content))
	report := Report{
		Filename:  filename,
		Timestamp: time.Now().UTC(),
		Findings:  findings,
		Unsafe:    IsUnsafe(findings),
	}
	span.SetAttributes(
		attribute.String("filename", filename),
		attribute.Int("findings", len(findings)),
		attribute.Bool("unsafe", report.Unsafe),
	)

	if report.Unsafe {
		s.log.Warn("document contains sensitive data, recording report",
			"filename", filename, "findings", len(findings))
		if err := s.reports.Save(ctx, report); err != nil {
			return report, err
		}
		return report, nil
	}

	s.log.Info("document clean, archiving", "filename", filename)
	if err := s.archive.Archive(ctx, filename, content); err != nil {
		return report, err
	}
	return report, nil
}
