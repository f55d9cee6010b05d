// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reason exposes the logic graph engine as an HTTP service.
//
// The service manages a registry of named engines, one per loaded
// schema document, and optionally persists documents and trained
// weights to an embedded store so graphs survive restarts.
package reason

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/neurosym/neurosym/pkg/logging"
	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/schema"
	"github.com/neurosym/neurosym/services/reason/solver"
	"github.com/neurosym/neurosym/services/reason/store"
	"github.com/neurosym/neurosym/services/reason/trainer"
)

// Registry errors.
var (
	// ErrGraphNotFound is returned when a request names an unloaded graph.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrGraphExists is returned when creating a graph under a name
	// already in use.
	ErrGraphExists = errors.New("graph already exists")
)

// ServiceConfig configures the reasoning service.
type ServiceConfig struct {
	// Solver tunes inference for all engines. If nil, solver defaults
	// are used.
	Solver *solver.Options

	// Trainer tunes training for all engines. If nil, trainer defaults
	// are used.
	Trainer *trainer.Options

	// Store enables persistence when non-nil. Documents are saved on
	// create and after training; saved documents reload on startup.
	Store *store.Store

	// Logger receives service events. If nil, a default logger is used.
	Logger *logging.Logger
}

// DefaultServiceConfig returns a config with defaults and no
// persistence.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{}
}

// Service manages named engines and their persistence.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	mu      sync.RWMutex
	engines map[string]*engine.Engine

	cfg   ServiceConfig
	store *store.Store
	log   *logging.Logger
}

// NewService creates the service and, when a store is configured,
// reloads every persisted document into the registry.
func NewService(cfg ServiceConfig) (*Service, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}

	s := &Service{
		engines: make(map[string]*engine.Engine),
		cfg:     cfg,
		store:   cfg.Store,
		log:     log,
	}

	if s.store != nil {
		names, err := s.store.ListDocuments()
		if err != nil {
			return nil, fmt.Errorf("listing persisted documents: %w", err)
		}
		for _, name := range names {
			doc, err := s.store.GetDocument(name)
			if err != nil {
				log.Warn("skipping persisted document", "name", name, "error", err)
				continue
			}
			e, _, err := s.newEngine(doc)
			if err != nil {
				log.Warn("persisted document no longer valid", "name", name, "error", err)
				continue
			}
			s.engines[name] = e
		}
		log.Info("service restored from store", "graphs", len(s.engines))
	}

	return s, nil
}

func (s *Service) newEngine(doc *schema.Document) (*engine.Engine, schema.Report, error) {
	return engine.New(doc, &engine.Config{
		Solver:  s.cfg.Solver,
		Trainer: s.cfg.Trainer,
		Logger:  s.log.Slog(),
	})
}

// CreateGraph validates doc and registers it under name.
func (s *Service) CreateGraph(name string, doc *schema.Document) (schema.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.engines[name]; exists {
		return schema.Report{Valid: true}, fmt.Errorf("%w: %q", ErrGraphExists, name)
	}

	e, report, err := s.newEngine(doc)
	if err != nil {
		return report, err
	}
	s.engines[name] = e

	if s.store != nil {
		if err := s.store.SaveDocument(name, doc); err != nil {
			s.log.Warn("persisting document failed", "name", name, "error", err)
		}
	}

	stats := e.Stats()
	s.log.Info("graph created",
		"name", name,
		"variables", stats.Variables,
		"rules", stats.Rules,
		"constraints", stats.Constraints,
	)
	return report, nil
}

// ReplaceGraph swaps the document under an existing name, keeping the
// engine instance so in-flight handler references stay valid.
func (s *Service) ReplaceGraph(name string, doc *schema.Document) (schema.Report, error) {
	e, err := s.Engine(name)
	if err != nil {
		return schema.Report{}, err
	}
	report, err := e.Reload(doc)
	if err != nil {
		return report, err
	}
	if s.store != nil {
		if err := s.store.SaveDocument(name, doc); err != nil {
			s.log.Warn("persisting document failed", "name", name, "error", err)
		}
	}
	return report, nil
}

// Engine returns the engine registered under name.
func (s *Service) Engine(name string) (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGraphNotFound, name)
	}
	return e, nil
}

// DeleteGraph removes the graph from the registry and, when a store is
// configured, from persistence. Deleting an unknown graph is an error.
func (s *Service) DeleteGraph(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.engines[name]; !ok {
		return fmt.Errorf("%w: %q", ErrGraphNotFound, name)
	}
	delete(s.engines, name)

	if s.store != nil {
		if err := s.store.DeleteDocument(name); err != nil {
			s.log.Warn("deleting persisted document failed", "name", name, "error", err)
		}
	}
	s.log.Info("graph deleted", "name", name)
	return nil
}

// ListGraphs returns the registered graph names in sorted order.
func (s *Service) ListGraphs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PersistTrained saves the engine's current export (including trained
// weights) and its last inference values under name. No-op without a
// store.
func (s *Service) PersistTrained(name string, values map[string]float64) {
	if s.store == nil {
		return
	}
	e, err := s.Engine(name)
	if err != nil {
		return
	}
	if err := s.store.SaveDocument(name, e.Export()); err != nil {
		s.log.Warn("persisting trained weights failed", "name", name, "error", err)
	}
	if len(values) > 0 {
		if err := s.store.SaveValues(name, values); err != nil {
			s.log.Warn("persisting values failed", "name", name, "error", err)
		}
	}
}
