// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger provides the durable storage.Gateway implementation
// backed by BadgerDB, plus the small DB wrapper (config, transaction
// helpers, background GC) it is built on.
package badger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config controls how a DB is opened.
type Config struct {
	InMemory          bool
	Path              string
	SyncWrites        bool
	NumVersionsToKeep int
	GCInterval        time.Duration
	GCDiscardRatio    float64
	Logger            badger.Logger
}

// DefaultConfig returns the settings for a persistent, fsync'd database
// with periodic value-log garbage collection.
func DefaultConfig() Config {
	return Config{
		InMemory:          false,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig returns the settings used by tests: no fsync, no value
// log, GC disabled.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		SyncWrites:        false,
		NumVersionsToKeep: 1,
		GCInterval:        0,
		GCDiscardRatio:    0.5,
	}
}

// DB wraps a *badger.DB with context-aware transaction helpers and an
// optional background GC runner.
type DB struct {
	inner *badger.DB
	gc    *GCRunner
}

// Open opens a database per cfg. InMemory takes precedence; otherwise Path
// must be set.
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger: path is required for persistent storage")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("badger: create path: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	inner, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}

	db := &DB{inner: inner}
	if cfg.GCInterval > 0 {
		runner, err := NewGCRunner(inner, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			inner.Close()
			return nil, err
		}
		db.gc = runner
		runner.Start()
	}
	return db, nil
}

// OpenDB is an alias for Open kept for callers that construct Config
// themselves rather than going through the convenience constructors.
func OpenDB(cfg Config) (*DB, error) { return Open(cfg) }

// OpenInMemory opens a volatile database suitable for tests.
func OpenInMemory() (*DB, error) { return Open(InMemoryConfig()) }

// OpenWithPath opens a persistent database rooted at dir.
func OpenWithPath(dir string) (*DB, error) {
	cfg := DefaultConfig()
	cfg.Path = dir
	return Open(cfg)
}

// Close stops any running GC and closes the underlying database.
func (db *DB) Close() error {
	if db.gc != nil {
		db.gc.Stop()
	}
	return db.inner.Close()
}

// WithTxn runs fn inside a read-write transaction, aborting early if ctx
// is already cancelled.
func (db *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badger: context cancelled: %w", err)
	}
	return db.inner.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction, aborting early if
// ctx is already cancelled.
func (db *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badger: context cancelled: %w", err)
	}
	return db.inner.View(fn)
}

// GCRunner periodically reclaims badger value-log space in the
// background.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   badger.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewGCRunner validates its arguments and returns a runner that has not
// started yet.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger badger.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("badger: db must not be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("badger: interval must be positive")
	}
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("badger: ratio must be between 0 and 1")
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the background GC loop. Start is not safe to call twice.
func (r *GCRunner) Start() {
	go r.loop()
}

func (r *GCRunner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			for {
				if err := r.db.RunValueLogGC(r.ratio); err != nil {
					break
				}
			}
		}
	}
}

// Stop halts the GC loop and waits for it to exit. Repeated calls are
// safe once the loop has exited. Stop waits on the loop started by Start,
// so on a runner whose Start was never called it blocks forever.
func (r *GCRunner) Stop() {
	r.once.Do(func() {
		close(r.stop)
	})
	<-r.done
}

// TempDir creates a new temporary directory with the given prefix,
// matching the teacher's test-helper naming.
func TempDir(prefix string) (string, error) {
	return os.MkdirTemp("", prefix)
}

// CleanupDir removes a directory created by TempDir. An empty path is a
// no-op.
func CleanupDir(path string) error {
	if path == "" {
		return nil
	}
	return os.RemoveAll(path)
}
