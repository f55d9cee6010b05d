// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package solver runs damped fixed-point inference over a logic graph.
//
// Inference alternates a forward pass (rules propagate truth values in
// topological order) with a constraint pass (ATTACK, SUPPORT, MUTEX
// adjustments), repeating until the largest value change in a full
// iteration drops below the convergence threshold or the iteration
// budget runs out. Non-convergence is a normal outcome for cyclic rule
// graphs, never an error.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/logic"
)

var inferTracer = otel.Tracer("reason.solver")

// Solver configuration constants.
const (
	// DefaultMaxIterations is the iteration budget before giving up.
	DefaultMaxIterations = 100

	// DefaultConvergenceThreshold stops iteration when the largest value
	// change in a full pass falls below it.
	DefaultConvergenceThreshold = 0.001

	// DefaultDampingFactor blends new contributions with current values.
	// 1 takes the new contribution outright; smaller values converge
	// more slowly but tame oscillation in cyclic graphs.
	DefaultDampingFactor = 0.5

	// NeutralValue is returned when querying a variable the graph does
	// not contain.
	NeutralValue = 0.5
)

// State is the solver lifecycle state.
type State int

const (
	// StateIdle indicates no inference has run yet.
	StateIdle State = iota

	// StatePropagating indicates an inference loop is in progress.
	StatePropagating

	// StateConverged indicates the last inference converged within budget.
	StateConverged

	// StateExhausted indicates the last inference used the full
	// iteration budget without converging.
	StateExhausted
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePropagating:
		return "propagating"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Options configures the fixed-point iteration.
type Options struct {
	// MaxIterations is the iteration budget. Must be > 0. Default: 100
	MaxIterations int

	// ConvergenceThreshold is the stop condition on the per-iteration
	// maximum delta. Must be > 0. Default: 0.001
	ConvergenceThreshold float64

	// DampingFactor weighs new contributions against current values.
	// Must be in (0, 1]. Default: 0.5
	DampingFactor float64
}

// Validate checks options and applies defaults for invalid values.
func (o *Options) Validate() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if o.DampingFactor <= 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		MaxIterations:        DefaultMaxIterations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
		DampingFactor:        DefaultDampingFactor,
	}
}

// Result contains the output of an inference run.
type Result struct {
	// Values maps every variable name to its post-inference value.
	Values map[string]float64 `json:"values"`

	// Iterations is the number of full passes performed.
	Iterations int `json:"iterations"`

	// Converged indicates the maximum delta dropped below the threshold
	// before the iteration budget ran out.
	Converged bool `json:"converged"`

	// MaxDelta is the final maximum absolute value change (useful for
	// judging how far from a fixed point a non-converged run stopped).
	MaxDelta float64 `json:"max_delta"`

	// State is the terminal solver state.
	State State `json:"state"`
}

// Infer runs damped fixed-point iteration on g until convergence or the
// iteration budget runs out.
//
// Description:
//
//	Each iteration makes a forward pass over variables in topological
//	order (locked variables and variables with no producing rules are
//	skipped; contributions from producing rules are combined by
//	weighted average and blended with the current value using the
//	damping factor) followed by a constraint pass (ATTACK and SUPPORT
//	applied to unlocked targets, MUTEX groups scaled into the headroom
//	left by their locked members). The run stops when the largest
//	absolute change across both passes falls below the convergence
//	threshold.
//
// Inputs:
//
//   - ctx: Context for cancellation. Checked once per iteration.
//   - g: The logic graph. Mutated in place.
//   - opts: Configuration. If nil, defaults are used.
//
// Outputs:
//
//   - *Result: Final values, iteration count, convergence flag.
//     Converged=false is a normal outcome, not an error.
//   - error: Only when a rule carries an operation or rule type outside
//     the closed set, wrapping logic.ErrUnknownOperation for operators.
//     Such a rule means a corrupted graph; it is never skipped silently.
func Infer(ctx context.Context, g *graph.Graph, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	} else {
		opts.Validate()
	}

	ctx, span := inferTracer.Start(ctx, "solver.Infer",
		trace.WithAttributes(
			attribute.Int("max_iterations", opts.MaxIterations),
			attribute.Float64("damping_factor", opts.DampingFactor),
			attribute.Float64("convergence_threshold", opts.ConvergenceThreshold),
		),
	)
	defer span.End()

	if g == nil {
		span.AddEvent("nil_graph")
		return &Result{Values: map[string]float64{}, Converged: true, State: StateConverged}, nil
	}

	order := g.TopologicalOrder()
	span.SetAttributes(attribute.Int("variable_count", len(order)))

	state := StatePropagating
	var iterations int
	var maxDelta float64
	converged := false

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("iterations_completed", iter),
			))
			return &Result{
				Values:     g.Values(),
				Iterations: iter,
				Converged:  false,
				MaxDelta:   maxDelta,
				State:      StateExhausted,
			}, nil
		}

		maxDelta = 0

		d, err := forwardPass(g, order, opts.DampingFactor)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if d > maxDelta {
			maxDelta = d
		}
		if d := constraintPass(g); d > maxDelta {
			maxDelta = d
		}

		iterations = iter + 1
		if maxDelta < opts.ConvergenceThreshold {
			converged = true
			break
		}
	}

	if converged {
		state = StateConverged
	} else {
		state = StateExhausted
	}

	span.SetAttributes(
		attribute.Int("iterations", iterations),
		attribute.Bool("converged", converged),
		attribute.Float64("max_delta", maxDelta),
	)
	slog.Debug("inference finished",
		"iterations", iterations,
		"converged", converged,
		"max_delta", maxDelta,
	)

	return &Result{
		Values:     g.Values(),
		Iterations: iterations,
		Converged:  converged,
		MaxDelta:   maxDelta,
		State:      state,
	}, nil
}

// InferWithEvidence resets the graph to priors, clears all locks, locks
// each evidence entry at its value, and runs Infer.
//
// Each call therefore starts from a clean prior state plus exactly the
// supplied evidence; state from previous calls never leaks in. Evidence
// naming variables absent from the graph is ignored.
func InferWithEvidence(ctx context.Context, g *graph.Graph, evidence map[string]float64, opts *Options) (*Result, error) {
	if g == nil {
		return &Result{Values: map[string]float64{}, Converged: true, State: StateConverged}, nil
	}
	// Unlock first so stale evidence from a previous call resets too.
	g.UnlockAll()
	g.ResetToPriors()
	for name, value := range evidence {
		g.LockVariable(name, value)
	}
	return Infer(ctx, g, opts)
}

// Query runs InferWithEvidence and returns the named variable's value.
// Variables absent from the graph report the neutral 0.5.
func Query(ctx context.Context, g *graph.Graph, variable string, evidence map[string]float64, opts *Options) (float64, *Result, error) {
	result, err := InferWithEvidence(ctx, g, evidence, opts)
	if err != nil {
		return NeutralValue, nil, err
	}
	value, ok := result.Values[variable]
	if !ok {
		return NeutralValue, result, nil
	}
	return value, result, nil
}

// Explain runs InferWithEvidence and returns the post-inference values
// of every variable not present in the evidence map.
func Explain(ctx context.Context, g *graph.Graph, evidence map[string]float64, opts *Options) (map[string]float64, error) {
	result, err := InferWithEvidence(ctx, g, evidence, opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(result.Values))
	for name, value := range result.Values {
		if _, isEvidence := evidence[name]; isEvidence {
			continue
		}
		out[name] = value
	}
	return out, nil
}

// forwardPass propagates rule contributions in topological order and
// returns the largest absolute value change.
func forwardPass(g *graph.Graph, order []string, damping float64) (float64, error) {
	var maxDelta float64

	for _, name := range order {
		if g.IsLocked(name) {
			continue
		}
		producers := g.RulesWithOutput(name)
		if len(producers) == 0 {
			continue
		}

		contributions := make([]logic.WeightedPair, 0, len(producers))
		for _, r := range producers {
			value, active, err := evaluateRule(g, r)
			if err != nil {
				return 0, err
			}
			if !active {
				continue
			}
			contributions = append(contributions, logic.WeightedPair{Value: value, Weight: r.Weight})
		}
		if len(contributions) == 0 {
			continue
		}

		old, _ := g.GetValue(name)
		combined := logic.WeightedAverage(contributions)
		damped := logic.Clamp(damping*combined + (1-damping)*old)
		g.SetValue(name, damped)

		if delta := math.Abs(damped - old); delta > maxDelta {
			maxDelta = delta
		}
	}

	return maxDelta, nil
}

// evaluateRule computes a rule's candidate contribution. The second
// return is false when the rule is inactive this pass, which happens
// when any input variable is undefined in the graph. An operation or
// rule type outside the closed set is an error, never a silent skip.
func evaluateRule(g *graph.Graph, r *graph.Rule) (float64, bool, error) {
	if len(r.Inputs) == 0 {
		return 0, false, nil
	}
	inputs := make([]float64, len(r.Inputs))
	for i, name := range r.Inputs {
		value, ok := g.GetValue(name)
		if !ok {
			return 0, false, nil
		}
		inputs[i] = value
	}

	var value float64
	switch r.Type {
	case graph.RuleTypeImplication:
		applied, err := logic.Apply(r.Op, inputs, nil)
		if err != nil {
			return 0, false, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		value = applied * r.Weight
	case graph.RuleTypeConjunction:
		value = logic.And(inputs...) * r.Weight
	case graph.RuleTypeDisjunction:
		value = logic.Or(inputs...) * r.Weight
	case graph.RuleTypeEquivalence:
		if len(inputs) >= 2 {
			value = logic.Equivalent(inputs[0], inputs[1]) * r.Weight
		} else {
			value = inputs[0] * r.Weight
		}
	default:
		return 0, false, fmt.Errorf("rule %q: unrecognized rule type %d", r.ID, int(r.Type))
	}

	return logic.Clamp(value), true, nil
}

// constraintPass applies argumentation constraints and returns the
// largest absolute value change.
func constraintPass(g *graph.Graph) float64 {
	var maxDelta float64

	// MUTEX constraints sharing a variable set collapse to one group.
	mutexGroups := make(map[string][]string)
	mutexOrder := make([]string, 0)

	for _, c := range g.Constraints() {
		switch c.Type {
		case graph.ConstraintTypeAttack, graph.ConstraintTypeSupport:
			source, ok := g.GetValue(c.Source)
			if !ok {
				continue
			}
			for _, target := range c.Targets {
				if g.IsLocked(target) {
					continue
				}
				old, ok := g.GetValue(target)
				if !ok {
					continue
				}
				var next float64
				if c.Type == graph.ConstraintTypeAttack {
					next = logic.Inhibit(old, source, c.Weight)
				} else {
					next = logic.Support(old, source, c.Weight)
				}
				g.SetValue(target, next)
				if delta := math.Abs(next - old); delta > maxDelta {
					maxDelta = delta
				}
			}
		case graph.ConstraintTypeMutex:
			members := c.Members()
			key := strings.Join(members, "\x1f")
			if _, seen := mutexGroups[key]; !seen {
				mutexGroups[key] = members
				mutexOrder = append(mutexOrder, key)
			}
		}
	}

	for _, key := range mutexOrder {
		if delta := applyMutex(g, mutexGroups[key]); delta > maxDelta {
			maxDelta = delta
		}
	}

	return maxDelta
}

// applyMutex scales a mutex group's unlocked members into the headroom
// its locked members leave, so the group never sums above 1.
func applyMutex(g *graph.Graph, members []string) float64 {
	var lockedSum, unlockedSum float64
	unlocked := make([]string, 0, len(members))

	for _, name := range members {
		value, ok := g.GetValue(name)
		if !ok {
			continue
		}
		if g.IsLocked(name) {
			lockedSum += value
		} else {
			unlocked = append(unlocked, name)
			unlockedSum += value
		}
	}

	headroom := math.Max(0, 1-lockedSum)
	if unlockedSum <= headroom || unlockedSum == 0 {
		return 0
	}

	scale := headroom / unlockedSum
	var maxDelta float64
	for _, name := range unlocked {
		old, _ := g.GetValue(name)
		next := logic.Clamp(old * scale)
		g.SetValue(name, next)
		if delta := math.Abs(next - old); delta > maxDelta {
			maxDelta = delta
		}
	}
	return maxDelta
}
