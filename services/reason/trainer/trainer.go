// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package trainer adjusts learnable rule weights from labeled examples.
//
// Training is gradient descent on mean squared error, with gradients
// estimated by symmetric finite differences: each learnable weight is
// nudged up and down by epsilon, the full-dataset loss recomputed at
// both points, and the slope between them taken as the gradient. This
// stays correct for any rule type without a differentiable forward
// model, at the cost of two full inference sweeps per rule per epoch.
// It is intentionally small-scale, suited to tens of rules and
// examples.
package trainer

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/logic"
	"github.com/neurosym/neurosym/services/reason/solver"
)

var trainTracer = otel.Tracer("reason.trainer")

// Trainer configuration constants.
const (
	// DefaultLearningRate scales each gradient step.
	DefaultLearningRate = 0.1

	// DefaultEpsilon is the finite-difference probe distance.
	DefaultEpsilon = 0.01

	// DefaultLossThreshold stops training early once the epoch loss
	// drops below it.
	DefaultLossThreshold = 0.001
)

// Example pairs evidence inputs with expected output truth values.
type Example struct {
	// Inputs is the evidence locked before inference.
	Inputs map[string]float64 `json:"inputs"`

	// Outputs maps variable names to their expected values.
	Outputs map[string]float64 `json:"outputs"`
}

// Options configures training.
type Options struct {
	// LearningRate scales each gradient step. Must be > 0. Default: 0.1
	LearningRate float64

	// Epsilon is the finite-difference probe distance. Must be > 0.
	// Default: 0.01
	Epsilon float64

	// LossThreshold stops training early once the epoch loss drops
	// below it. Must be > 0. Default: 0.001
	LossThreshold float64

	// Solver configures the inference runs inside the loss function.
	// If nil, solver defaults are used.
	Solver *solver.Options
}

// Validate checks options and applies defaults for invalid values.
func (o *Options) Validate() {
	if o.LearningRate <= 0 {
		o.LearningRate = DefaultLearningRate
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.LossThreshold <= 0 {
		o.LossThreshold = DefaultLossThreshold
	}
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		LearningRate:  DefaultLearningRate,
		Epsilon:       DefaultEpsilon,
		LossThreshold: DefaultLossThreshold,
	}
}

// Result contains the output of a training run.
type Result struct {
	// FinalLoss is the epoch loss after the last completed epoch.
	FinalLoss float64 `json:"final_loss"`

	// Epochs is the number of epochs actually run.
	Epochs int `json:"epochs"`

	// History holds the epoch loss after each epoch, in order.
	History []float64 `json:"history"`

	// Weights maps rule ID to its final weight.
	Weights map[string]float64 `json:"weights"`

	// EarlyStopped indicates the loss threshold was reached before the
	// epoch budget ran out.
	EarlyStopped bool `json:"early_stopped"`
}

// Train runs up to epochs of finite-difference gradient descent on g's
// learnable rule weights.
//
// Description:
//
//	Each epoch first measures the mean per-example loss, stopping
//	early when it falls below the loss threshold. It then estimates
//	the loss gradient of every learnable rule weight by probing w+eps
//	and w-eps, restores the weight, and steps it against the gradient,
//	clamped to [0,1]. The graph's weights are updated in place; its
//	runtime state is left as the last inference wrote it.
//
// Inputs:
//
//   - ctx: Context for cancellation. Checked once per epoch.
//   - g: The logic graph. Weights mutated in place.
//   - examples: Labeled evidence/expectation pairs.
//   - epochs: Epoch budget. Non-positive budgets run zero epochs.
//   - opts: Configuration. If nil, defaults are used.
//
// Outputs:
//
//   - *Result: Final loss, epoch count, loss history, final weights.
//   - error: On cancellation, or when inference rejects a rule carrying
//     an unrecognized operation; a loss that never reaches the
//     threshold is a normal outcome.
func Train(ctx context.Context, g *graph.Graph, examples []Example, epochs int, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	} else {
		opts.Validate()
	}

	ctx, span := trainTracer.Start(ctx, "trainer.Train",
		trace.WithAttributes(
			attribute.Int("example_count", len(examples)),
			attribute.Int("epoch_budget", epochs),
			attribute.Float64("learning_rate", opts.LearningRate),
			attribute.Float64("epsilon", opts.Epsilon),
		),
	)
	defer span.End()

	result := &Result{History: make([]float64, 0, max(epochs, 0))}
	if g == nil || len(examples) == 0 || epochs <= 0 {
		result.Weights = weightSnapshot(g)
		return result, nil
	}

	learnable := make([]*graph.Rule, 0)
	for _, r := range g.Rules() {
		if r.Learnable {
			learnable = append(learnable, r)
		}
	}
	span.SetAttributes(attribute.Int("learnable_rules", len(learnable)))

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("epochs_completed", epoch),
			))
			result.Weights = weightSnapshot(g)
			return result, err
		}

		loss, err := datasetLoss(ctx, g, examples, opts.Solver)
		if err != nil {
			span.RecordError(err)
			result.Weights = weightSnapshot(g)
			return result, err
		}
		result.History = append(result.History, loss)
		result.FinalLoss = loss
		result.Epochs = epoch + 1

		slog.Debug("training epoch",
			"epoch", epoch,
			"loss", loss,
			"learnable_rules", len(learnable),
		)

		if loss < opts.LossThreshold {
			result.EarlyStopped = true
			break
		}

		for _, r := range learnable {
			w := r.Weight

			_ = g.SetRuleWeight(r.ID, w+opts.Epsilon)
			lossPlus, err := datasetLoss(ctx, g, examples, opts.Solver)
			if err != nil {
				result.Weights = weightSnapshot(g)
				return result, err
			}

			_ = g.SetRuleWeight(r.ID, w-opts.Epsilon)
			lossMinus, err := datasetLoss(ctx, g, examples, opts.Solver)
			if err != nil {
				result.Weights = weightSnapshot(g)
				return result, err
			}

			gradient := (lossPlus - lossMinus) / (2 * opts.Epsilon)
			_ = g.SetRuleWeight(r.ID, logic.Clamp(w-opts.LearningRate*gradient))
		}
	}

	result.Weights = weightSnapshot(g)
	span.SetAttributes(
		attribute.Int("epochs", result.Epochs),
		attribute.Float64("final_loss", result.FinalLoss),
		attribute.Bool("early_stopped", result.EarlyStopped),
	)
	return result, nil
}

// datasetLoss is the mean per-example MSE under the graph's current
// weights. Expected outputs naming variables absent from the graph read
// as the neutral 0.5.
func datasetLoss(ctx context.Context, g *graph.Graph, examples []Example, opts *solver.Options) (float64, error) {
	if len(examples) == 0 {
		return 0, nil
	}
	var total float64
	for _, ex := range examples {
		result, err := solver.InferWithEvidence(ctx, g, ex.Inputs, opts)
		if err != nil {
			return 0, err
		}
		total += exampleLoss(result, ex)
	}
	return total / float64(len(examples)), nil
}

// exampleLoss is the mean squared error over one example's expected
// outputs.
func exampleLoss(result *solver.Result, ex Example) float64 {
	if len(ex.Outputs) == 0 {
		return 0
	}
	var sum float64
	for name, want := range ex.Outputs {
		got, ok := result.Values[name]
		if !ok {
			got = solver.NeutralValue
		}
		diff := got - want
		sum += diff * diff
	}
	return sum / float64(len(ex.Outputs))
}

func weightSnapshot(g *graph.Graph) map[string]float64 {
	out := make(map[string]float64)
	if g == nil {
		return out
	}
	for _, r := range g.Rules() {
		out[r.ID] = r.Weight
	}
	return out
}
