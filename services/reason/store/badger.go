// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists schema documents, inference values, and
// context-graph nodes in an embedded BadgerDB.
//
// BadgerDB gives low-latency local storage with no external service to
// run, which fits the deployment model here: a reasoning service that
// owns its documents and trained weights on local disk.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the embedded database.
type Config struct {
	// Path is the directory for database files. Required unless
	// InMemory is true.
	Path string

	// InMemory enables in-memory mode with no disk persistence.
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, internal
	// logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before a
	// GC pass rewrites a value log file.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: synchronous writes and a
// five-minute GC interval.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no
// sync, no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openDB opens a BadgerDB instance with the given configuration,
// creating the directory if needed.
func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}
