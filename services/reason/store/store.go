// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/neurosym/neurosym/services/reason/schema"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("not found")

// Key prefixes partition the keyspace.
const (
	prefixDocument    = "doc:"
	prefixValues      = "values:"
	prefixNode        = "node:"
	prefixAssociation = "assoc:"
)

// Store is the persistence layer for documents, inference values, and
// context-graph entities.
//
// Thread Safety: Safe for concurrent use; BadgerDB handles transaction
// isolation.
type Store struct {
	db *badger.DB

	gcStop chan struct{}
	gcOnce sync.Once
}

// NewStore opens the store with the given configuration. Caller must
// Close when done.
func NewStore(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, gcStop: make(chan struct{})}
	if cfg.GCInterval > 0 {
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	s.gcOnce.Do(func() { close(s.gcStop) })
	return s.db.Close()
}

func (s *Store) gcLoop(interval time.Duration, discardRatio float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing
			// to collect; that is not a failure.
			for s.db.RunValueLogGC(discardRatio) == nil {
			}
		}
	}
}

// SaveDocument stores a schema document under name.
func (s *Store) SaveDocument(name string, doc *schema.Document) error {
	if name == "" {
		return errors.New("document name must not be empty")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %q: %w", name, err)
	}
	return s.set(prefixDocument+name, data)
}

// GetDocument loads the schema document stored under name.
func (s *Store) GetDocument(name string) (*schema.Document, error) {
	data, err := s.get(prefixDocument + name)
	if err != nil {
		return nil, err
	}
	var doc schema.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %q: %w", name, err)
	}
	return &doc, nil
}

// ListDocuments returns the names of all stored documents in key order.
func (s *Store) ListDocuments() ([]string, error) {
	names := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixDocument)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, prefixDocument))
		}
		return nil
	})
	return names, err
}

// DeleteDocument removes the document and its saved values. Deleting a
// missing document is not an error.
func (s *Store) DeleteDocument(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixDocument + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixValues + name))
	})
}

// SaveValues stores a snapshot of inference values for the named
// document, so a restart can report the last computed state.
func (s *Store) SaveValues(name string, values map[string]float64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding values for %q: %w", name, err)
	}
	return s.set(prefixValues+name, data)
}

// GetValues loads the last saved inference values for the named
// document.
func (s *Store) GetValues(name string) (map[string]float64, error) {
	data, err := s.get(prefixValues + name)
	if err != nil {
		return nil, err
	}
	values := make(map[string]float64)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding values for %q: %w", name, err)
	}
	return values, nil
}

func (s *Store) set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return out, err
}
