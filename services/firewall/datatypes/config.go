// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the firewall service configuration, read from the
// environment in main and validated before any component is constructed.
type Config struct {
	// Port is the HTTP listen port.
	Port string `validate:"required,numeric"`

	// BlockThreshold is the risk score at or above which a prompt is
	// blocked regardless of its stated classification.
	BlockThreshold float64 `validate:"gt=0,lte=1"`

	// FastPathThreshold is the risk score below which full verification
	// is skipped after generation.
	FastPathThreshold float64 `validate:"gte=0,ltfield=BlockThreshold"`

	// CacheSize bounds the judgment cache (entries).
	CacheSize int `validate:"gt=0"`

	// CacheTTL bounds judgment cache entry lifetime.
	CacheTTL time.Duration `validate:"gt=0"`

	// CapabilityTimeout bounds each external capability call inside the
	// verification coordinator. On expiry the affected check degrades to
	// its documented fallback rather than hanging the invocation.
	CapabilityTimeout time.Duration `validate:"gt=0"`

	// AuditQueueSize bounds the audit gate's in-flight event queue.
	AuditQueueSize int `validate:"gt=0"`

	// AuditReadyTimeout bounds the wait for one-time sink readiness per
	// event. Past it the event is dropped silently (logged, counted).
	AuditReadyTimeout time.Duration `validate:"gt=0"`

	// AuditDBPath is the Badger directory for the durable audit store.
	// Empty selects an in-memory store that does not survive restarts.
	AuditDBPath string

	// SignaturePath is the YAML file holding heuristic attack signatures.
	// Empty selects the compiled-in defaults.
	SignaturePath string

	// ArchiveBucket is the GCS bucket for clean scanned documents.
	// Empty disables archiving.
	ArchiveBucket string
}

// DefaultConfig returns the thresholds and bounds the pipeline was tuned
// with. BlockThreshold and FastPathThreshold are part of the routing
// contract; change them only together with the tests that pin them.
func DefaultConfig() Config {
	return Config{
		Port:              "12310",
		BlockThreshold:    0.85,
		FastPathThreshold: 0.30,
		CacheSize:         256,
		CacheTTL:          10 * time.Minute,
		CapabilityTimeout: 60 * time.Second,
		AuditQueueSize:    128,
		AuditReadyTimeout: 10 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, starting from
// DefaultConfig. Unset variables keep their defaults; malformed numeric
// values are an error rather than a silent fallback.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("FIREWALL_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("FIREWALL_BLOCK_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_BLOCK_THRESHOLD: %w", err)
		}
		cfg.BlockThreshold = f
	}
	if v := os.Getenv("FIREWALL_FAST_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_FAST_THRESHOLD: %w", err)
		}
		cfg.FastPathThreshold = f
	}
	if v := os.Getenv("FIREWALL_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = n
	}
	if v := os.Getenv("FIREWALL_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv("FIREWALL_CAPABILITY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_CAPABILITY_TIMEOUT: %w", err)
		}
		cfg.CapabilityTimeout = d
	}
	if v := os.Getenv("FIREWALL_AUDIT_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_AUDIT_QUEUE_SIZE: %w", err)
		}
		cfg.AuditQueueSize = n
	}
	if v := os.Getenv("FIREWALL_AUDIT_READY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("FIREWALL_AUDIT_READY_TIMEOUT: %w", err)
		}
		cfg.AuditReadyTimeout = d
	}
	cfg.AuditDBPath = os.Getenv("FIREWALL_AUDIT_DB_PATH")
	cfg.SignaturePath = os.Getenv("FIREWALL_SIGNATURE_PATH")
	cfg.ArchiveBucket = os.Getenv("FIREWALL_ARCHIVE_BUCKET")

	return cfg, cfg.Validate()
}

var validate = validator.New()

// Validate checks structural constraints on the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid firewall config: %w", err)
	}
	return nil
}
