// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for AleutianShield components.
//
// This package is a thin layer over Go's standard slog package:
//
//   - Default: JSON output to stderr (follows Unix conventions)
//   - Optional: file logging with automatic directory creation
//
// # Basic Usage
//
// For simple usage with stderr output:
//
//	logger := logging.Default()
//	logger.Info("pipeline started", "request_id", reqID)
//	logger.Error("capability call failed", "error", err)
//
// # File Logging
//
// To enable file logging alongside stderr:
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.aleutian/logs",
//	    Service: "firewall",
//	})
//	defer logger.Close()
//
// This creates log files named `{service}_{date}.log` in JSON format.
//
// # Thread Safety
//
// Logger is safe for concurrent use. The underlying slog.Logger is
// thread-safe and internal state is protected by a mutex.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers must
// ensure raw prompts, tokens, and secrets are not logged verbatim:
//
//	// BAD: logs the full untrusted prompt
//	logger.Info("classified", "prompt", prompt)
//
//	// GOOD: log metadata only
//	logger.Info("classified", "prompt_length", len(prompt))
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels.
//
// Levels follow the slog convention and are ordered by severity:
// Debug < Info < Warn < Error. Setting a minimum level filters out all
// logs below that level.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for potentially problematic situations, including
	// fallback activations and degraded-mode operation.
	LevelWarn

	// LevelError is for operation failures where the system continues.
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level. Unknown strings map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogDir, when non-empty, enables file logging in that directory.
	// Supports ~ expansion. The directory is created if missing.
	LogDir string

	// Service names the component; used in the log file name and attached
	// to every record as the "service" attribute.
	Service string

	// Writer overrides the default stderr destination. Used in tests.
	Writer io.Writer
}

// Logger wraps slog.Logger with file lifecycle management.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger per the supplied Config.
//
// # Description
//
// Builds a JSON slog handler writing to stderr (or cfg.Writer), and, when
// cfg.LogDir is set, additionally to a `{service}_{date}.log` file in that
// directory. File open errors degrade to stderr-only logging and are
// reported via the returned error, but the Logger is always usable.
//
// # Thread Safety
//
// The returned Logger is safe for concurrent use.
func New(cfg Config) (*Logger, error) {
	out := cfg.Writer
	if out == nil {
		out = os.Stderr
	}

	var (
		file    *os.File
		openErr error
	)
	if cfg.LogDir != "" {
		dir := expandHome(cfg.LogDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			openErr = fmt.Errorf("create log dir %s: %w", dir, err)
		} else {
			name := fmt.Sprintf("%s_%s.log", cfg.Service, time.Now().Format("2006-01-02"))
			file, openErr = os.OpenFile(filepath.Join(dir, name),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if openErr != nil {
				openErr = fmt.Errorf("open log file: %w", openErr)
			}
		}
	}
	if file != nil {
		out = io.MultiWriter(out, file)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.Level.slogLevel(),
	})
	base := slog.New(handler)
	if cfg.Service != "" {
		base = base.With("service", cfg.Service)
	}

	return &Logger{Logger: base, file: file}, openErr
}

// Default returns a stderr-only JSON logger at Info level.
func Default() *Logger {
	l, _ := New(Config{Level: LevelInfo})
	return l
}

// Close flushes and closes the log file, if any. Safe to call twice.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
