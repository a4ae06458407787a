// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/dgraph-io/badger/v4"
)

// =============================================================================
// Badger Report Store
// =============================================================================

// BadgerReportStore persists scan reports to an embedded BadgerDB,
// keyed `scan:{unix_nano}:{filename}` for chronological scans.
type BadgerReportStore struct {
	db *badger.DB
}

// NewBadgerReportStore opens (or creates) a report store at path. An
// empty path selects in-memory mode.
func NewBadgerReportStore(path string) (*BadgerReportStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return &BadgerReportStore{db: db}, nil
}

var _ ReportStore = (*BadgerReportStore)(nil)

// Save stores one report.
func (s *BadgerReportStore) Save(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal scan report: %w", err)
	}
	key := fmt.Sprintf("scan:%d:%s", report.Timestamp.UnixNano(), report.Filename)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("persist scan report: %w", err)
	}
	return nil
}

// Reports returns all stored reports in scan order.
func (s *BadgerReportStore) Reports(ctx context.Context) ([]Report, error) {
	var reports []Report
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("scan:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var report Report
				if err := json.Unmarshal(val, &report); err != nil {
					return nil
				}
				reports = append(reports, report)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan report store: %w", err)
	}
	return reports, nil
}

// Close shuts the store down.
func (s *BadgerReportStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Directory Archiver
// =============================================================================

// DirArchiver stores clean documents in a local directory. Used in
// lightweight mode when no archive bucket is configured.
type DirArchiver struct {
	dir string
}

// NewDirArchiver creates the archive directory if needed.
func NewDirArchiver(dir string) (*DirArchiver, error) {
	if dir == "" {
		return nil, errors.New("dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", dir, err)
	}
	return &DirArchiver{dir: dir}, nil
}

var _ Archiver = (*DirArchiver)(nil)

// Archive writes one document into the archive directory. The filename
// is flattened to its base to keep writes inside the directory.
func (a *DirArchiver) Archive(ctx context.Context, filename string, content []byte) error {
	path := filepath.Join(a.dir, filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("archive %s: %w", filename, err)
	}
	return nil
}

// =============================================================================
// GCS Archiver
// =============================================================================

// GCSArchiver stores clean documents in a Cloud Storage bucket under a
// scans/ prefix.
type GCSArchiver struct {
	client *storage.Client
	bucket string
}

// NewGCSArchiver creates an archiver over an existing storage client.
func NewGCSArchiver(client *storage.Client, bucket string) (*GCSArchiver, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}
	return &GCSArchiver{client: client, bucket: bucket}, nil
}

var _ Archiver = (*GCSArchiver)(nil)

// Archive uploads one document.
func (a *GCSArchiver) Archive(ctx context.Context, filename string, content []byte) error {
	obj := a.client.Bucket(a.bucket).Object("scans/" + filename)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(content); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write %s to gs://%s: %w", filename, a.bucket, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/scans/%s: %w", a.bucket, filename, err)
	}
	return nil
}
