// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine wraps a logic graph with inference, training, and
// reload behind a single synchronized facade.
//
// The graph itself assumes single-writer access; Engine adds the lock
// so HTTP handlers, the CLI, and the schema watcher can share one
// instance safely.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/schema"
	"github.com/neurosym/neurosym/services/reason/solver"
	"github.com/neurosym/neurosym/services/reason/trainer"
)

// Config carries tuning options for the engine's solver and trainer.
type Config struct {
	// Solver configures inference. If nil, solver defaults are used.
	Solver *solver.Options

	// Trainer configures training. If nil, trainer defaults are used.
	Trainer *trainer.Options

	// Logger receives reload and lifecycle events. If nil, the default
	// slog logger is used.
	Logger *slog.Logger
}

// Engine is a synchronized facade over one logic graph.
type Engine struct {
	mu      sync.Mutex
	g       *graph.Graph
	solver  *solver.Options
	trainer *trainer.Options
	log     *slog.Logger
}

// New validates doc, loads it, and returns a ready engine.
//
// On validation failure the report carries the field errors and the
// error wraps graph.ErrInvalidDocument.
func New(doc *schema.Document, cfg *Config) (*Engine, schema.Report, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	g, report, err := graph.FromDocument(doc)
	if err != nil {
		return nil, report, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		g:       g,
		solver:  cfg.Solver,
		trainer: cfg.Trainer,
		log:     log,
	}, report, nil
}

// Name returns the label the loaded document carried.
func (e *Engine) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Name
}

// Reload replaces the graph with one built from doc.
//
// If doc fails validation the current graph stays in place untouched
// and the report carries the field errors. Trained weights in the old
// graph are discarded on success; export first to keep them.
func (e *Engine) Reload(doc *schema.Document) (schema.Report, error) {
	g, report, err := graph.FromDocument(doc)
	if err != nil {
		e.log.Warn("reload rejected, keeping current graph",
			"field_errors", len(report.Errors),
		)
		return report, err
	}

	e.mu.Lock()
	e.g = g
	e.mu.Unlock()

	stats := g.Stats()
	e.log.Info("graph reloaded",
		"name", g.Name,
		"variables", stats.Variables,
		"rules", stats.Rules,
		"constraints", stats.Constraints,
	)
	return report, nil
}

// Infer runs fixed-point inference from the graph's current state.
func (e *Engine) Infer(ctx context.Context) (*solver.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return solver.Infer(ctx, e.g, e.solver)
}

// InferWithEvidence resets to priors, locks the evidence, and infers.
func (e *Engine) InferWithEvidence(ctx context.Context, evidence map[string]float64) (*solver.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return solver.InferWithEvidence(ctx, e.g, evidence, e.solver)
}

// Query returns one variable's post-inference value under the given
// evidence. Unknown variables report the neutral 0.5.
func (e *Engine) Query(ctx context.Context, variable string, evidence map[string]float64) (float64, *solver.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return solver.Query(ctx, e.g, variable, evidence, e.solver)
}

// Explain returns post-inference values for every non-evidence variable.
func (e *Engine) Explain(ctx context.Context, evidence map[string]float64) (map[string]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return solver.Explain(ctx, e.g, evidence, e.solver)
}

// Train fits learnable rule weights to the examples, mutating the
// loaded graph in place.
func (e *Engine) Train(ctx context.Context, examples []trainer.Example, epochs int) (*trainer.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return trainer.Train(ctx, e.g, examples, epochs, e.trainer)
}

// SetRuleWeight overrides one rule's weight, clamped to [0,1].
func (e *Engine) SetRuleWeight(id string, weight float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.SetRuleWeight(id, weight)
}

// RuleWeight returns one rule's current weight.
func (e *Engine) RuleWeight(id string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.g.Rule(id)
	if !ok {
		return 0, false
	}
	return r.Weight, true
}

// Values snapshots every variable's current truth value.
func (e *Engine) Values() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Values()
}

// Export snapshots the graph's structure including trained weights.
func (e *Engine) Export() *schema.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Export()
}

// Stats summarizes the loaded graph.
func (e *Engine) Stats() graph.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Stats()
}

// Snapshot returns an independent copy of the loaded graph, including
// runtime state. Useful for offline experiments against a live engine.
func (e *Engine) Snapshot() *graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Clone()
}
