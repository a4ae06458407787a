// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classifier

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// SignatureWatcher hot-reloads the heuristic judge's signature table when
// the signature file changes on disk.
//
// # Description
//
// Watches the directory containing the signature file (editors often
// replace the file rather than write in place, which drops a watch on the
// file itself) and reloads on Write/Create events for the target path. A
// reload that fails leaves the previous table active.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type SignatureWatcher struct {
	path    string
	judge   *HeuristicJudge
	watcher *fsnotify.Watcher
}

// NewSignatureWatcher creates a watcher for the given signature file.
// The initial load happens here; a missing or unparseable file is an
// error so misconfiguration surfaces at startup rather than silently
// running on built-in defaults.
func NewSignatureWatcher(path string, judge *HeuristicJudge) (*SignatureWatcher, error) {
	if err := judge.LoadSignatures(path); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SignatureWatcher{path: path, judge: judge, watcher: watcher}, nil
}

// Start begins watching for signature file changes. Blocks until the
// context is cancelled; run in a goroutine.
func (w *SignatureWatcher) Start(ctx context.Context) {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		slog.Warn("Failed to watch signature directory",
			"dir", dir,
			"error", err)
		return
	}

	slog.Debug("Started watching attack signatures",
		"path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Signature watcher error",
				"error", err)

		case <-ctx.Done():
			slog.Debug("Signature watcher stopping")
			_ = w.watcher.Close()
			return
		}
	}
}

// handleEvent reloads the table when the signature file was rewritten.
func (w *SignatureWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if err := w.judge.LoadSignatures(w.path); err != nil {
		slog.Warn("Signature reload failed, keeping previous table",
			"path", w.path,
			"error", err)
	}
}
