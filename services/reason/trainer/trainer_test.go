// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trainer

import (
	"context"
	"errors"
	"testing"

	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/logic"
)

// singleRuleGraph builds in -> out with one learnable rule at the given
// starting weight.
func singleRuleGraph(t *testing.T, weight float64) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, v := range []graph.Variable{
		{Name: "in", Prior: 0.5},
		{Name: "out", Prior: 0.0},
	} {
		if err := g.AddVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddRule(graph.Rule{
		ID: "r", Type: graph.RuleTypeImplication,
		Inputs: []string{"in"}, Output: "out",
		Op: logic.OpIdentity, Weight: weight, Learnable: true,
	}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestTrain_SingleRuleConvergesTowardTarget(t *testing.T) {
	g := singleRuleGraph(t, 0.5)
	examples := []Example{
		{Inputs: map[string]float64{"in": 1}, Outputs: map[string]float64{"out": 0.9}},
	}

	result, err := Train(context.Background(), g, examples, 50, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if result.Epochs == 0 {
		t.Fatal("expected at least one epoch")
	}
	if len(result.History) != result.Epochs {
		t.Errorf("history length %d != epochs %d", len(result.History), result.Epochs)
	}
	if result.FinalLoss >= result.History[0] {
		t.Errorf("loss did not decrease: first %v, final %v", result.History[0], result.FinalLoss)
	}

	// With evidence in=1 the output converges to the rule weight, so the
	// trained weight should approach the 0.9 target.
	w := result.Weights["r"]
	if w < 0.8 || w > 1 {
		t.Errorf("trained weight = %v, expected near 0.9", w)
	}
	if !result.EarlyStopped {
		t.Errorf("expected early stop below loss threshold, final loss %v", result.FinalLoss)
	}
}

func TestTrain_WeightsStayInRange(t *testing.T) {
	g := singleRuleGraph(t, 0.95)
	// Target above anything reachable: the weight must saturate at 1,
	// not escape the range.
	examples := []Example{
		{Inputs: map[string]float64{"in": 1}, Outputs: map[string]float64{"out": 1}},
	}

	result, err := Train(context.Background(), g, examples, 30, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if w := result.Weights["r"]; w < 0 || w > 1 {
		t.Errorf("weight %v escaped [0,1]", w)
	}
}

func TestTrain_NonLearnableRuleUntouched(t *testing.T) {
	g := singleRuleGraph(t, 0.5)
	if err := g.AddVariable(graph.Variable{Name: "other", Prior: 0.2}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRule(graph.Rule{
		ID: "frozen", Type: graph.RuleTypeImplication,
		Inputs: []string{"in"}, Output: "other",
		Op: logic.OpIdentity, Weight: 0.3, Learnable: false,
	}); err != nil {
		t.Fatal(err)
	}
	examples := []Example{
		{Inputs: map[string]float64{"in": 1}, Outputs: map[string]float64{"out": 0.9, "other": 1}},
	}

	result, err := Train(context.Background(), g, examples, 10, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if w := result.Weights["frozen"]; w != 0.3 {
		t.Errorf("non-learnable weight changed: %v", w)
	}
}

func TestTrain_DegenerateInputs(t *testing.T) {
	t.Run("no examples", func(t *testing.T) {
		g := singleRuleGraph(t, 0.5)
		result, err := Train(context.Background(), g, nil, 10, nil)
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if result.Epochs != 0 {
			t.Errorf("Epochs = %d, expected 0", result.Epochs)
		}
		if result.Weights["r"] != 0.5 {
			t.Errorf("weight changed without examples: %v", result.Weights["r"])
		}
	})

	t.Run("zero epoch budget", func(t *testing.T) {
		g := singleRuleGraph(t, 0.5)
		examples := []Example{{Inputs: map[string]float64{"in": 1}, Outputs: map[string]float64{"out": 0.9}}}
		result, err := Train(context.Background(), g, examples, 0, nil)
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if result.Epochs != 0 || len(result.History) != 0 {
			t.Errorf("unexpected work done: %+v", result)
		}
	})

	t.Run("nil graph", func(t *testing.T) {
		result, err := Train(context.Background(), nil, nil, 10, nil)
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if len(result.Weights) != 0 {
			t.Errorf("Weights = %v", result.Weights)
		}
	})

	t.Run("unknown output variable reads neutral", func(t *testing.T) {
		g := singleRuleGraph(t, 0.5)
		examples := []Example{{Inputs: map[string]float64{"in": 1}, Outputs: map[string]float64{"fog": 0.5}}}
		result, err := Train(context.Background(), g, examples, 3, nil)
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		// Expected value equals the neutral default, so the loss is zero
		// and training stops immediately.
		if !result.EarlyStopped {
			t.Errorf("expected early stop at zero loss, got %+v", result)
		}
	})
}

func TestTrain_Cancellation(t *testing.T) {
	g := singleRuleGraph(t, 0.5)
	examples := []Example{{Inputs: map[string]float64{"in": 1}, Outputs: map[string]float64{"out": 0.9}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Train(ctx, g, examples, 10, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Epochs != 0 {
		t.Errorf("cancelled run should report zero completed epochs: %+v", result)
	}
}

func TestOptions_Validate(t *testing.T) {
	o := &Options{LearningRate: 0, Epsilon: -1, LossThreshold: 0}
	o.Validate()
	if o.LearningRate != DefaultLearningRate || o.Epsilon != DefaultEpsilon || o.LossThreshold != DefaultLossThreshold {
		t.Errorf("defaults not applied: %+v", o)
	}
}
