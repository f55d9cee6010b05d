// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/logic"
)

// chainGraph builds the three-variable chain A -> B (w=0.9) -> C (w=0.8)
// with priors 0.3, 0.1, 0.05.
func chainGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	vars := []graph.Variable{
		{Name: "a", Prior: 0.3},
		{Name: "b", Prior: 0.1},
		{Name: "c", Prior: 0.05},
	}
	for _, v := range vars {
		if err := g.AddVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	rules := []graph.Rule{
		{ID: "ab", Type: graph.RuleTypeImplication, Inputs: []string{"a"}, Output: "b", Op: logic.OpIdentity, Weight: 0.9, Learnable: true},
		{ID: "bc", Type: graph.RuleTypeImplication, Inputs: []string{"b"}, Output: "c", Op: logic.OpIdentity, Weight: 0.8, Learnable: true},
	}
	for _, r := range rules {
		if err := g.AddRule(r); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestInfer_ChainConverges(t *testing.T) {
	g := chainGraph(t)
	g.LockVariable("a", 1)

	result, err := Infer(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !result.Converged {
		t.Fatalf("chain should converge within budget, stopped at iteration %d with max delta %v",
			result.Iterations, result.MaxDelta)
	}
	if result.State != StateConverged {
		t.Errorf("State = %v, expected converged", result.State)
	}
	if result.Iterations <= 0 || result.Iterations > DefaultMaxIterations {
		t.Errorf("Iterations = %d", result.Iterations)
	}

	if a := result.Values["a"]; a != 1 {
		t.Errorf("locked evidence changed: a = %v", a)
	}
	if b := result.Values["b"]; b <= 0.1 {
		t.Errorf("b = %v, expected increase above prior 0.1", b)
	}
	if c := result.Values["c"]; c <= 0.05 {
		t.Errorf("c = %v, expected increase above prior 0.05", c)
	}
	// Influence attenuates along the chain.
	if result.Values["c"] >= result.Values["b"] {
		t.Errorf("c (%v) should stay below b (%v)", result.Values["c"], result.Values["b"])
	}
}

func TestInfer_Idempotent(t *testing.T) {
	g := chainGraph(t)
	g.LockVariable("a", 1)

	first, err := Infer(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Infer(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !second.Converged {
		t.Fatal("re-running on a converged graph should converge")
	}
	for name, v := range first.Values {
		if diff := math.Abs(second.Values[name] - v); diff > DefaultConvergenceThreshold {
			t.Errorf("%s drifted by %v on repeated inference", name, diff)
		}
	}
}

func TestInfer_NilAndEmptyGraph(t *testing.T) {
	if result, err := Infer(context.Background(), nil, nil); err != nil || !result.Converged {
		t.Errorf("nil graph should trivially converge, got %+v, %v", result, err)
	}
	if result, err := Infer(context.Background(), graph.New(), nil); err != nil || !result.Converged || result.Iterations != 1 {
		t.Errorf("empty graph should converge immediately, got %+v, %v", result, err)
	}
}

func TestInfer_UnrecognizedOperationFails(t *testing.T) {
	g := chainGraph(t)
	if err := g.AddRule(graph.Rule{
		ID: "bad", Type: graph.RuleTypeImplication,
		Inputs: []string{"a"}, Output: "c",
		Op: logic.Operation(99), Weight: 1,
	}); err != nil {
		t.Fatal(err)
	}

	result, err := Infer(context.Background(), g, nil)
	if err == nil {
		t.Fatalf("expected error for unrecognized operation, got %+v", result)
	}
	if !errors.Is(err, logic.ErrUnknownOperation) {
		t.Errorf("err = %v, expected wrapped ErrUnknownOperation", err)
	}

	t.Run("unrecognized rule type", func(t *testing.T) {
		g := chainGraph(t)
		if err := g.AddRule(graph.Rule{
			ID: "odd", Type: graph.RuleType(42),
			Inputs: []string{"a"}, Output: "c",
			Op: logic.OpIdentity, Weight: 1,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := Infer(context.Background(), g, nil); err == nil {
			t.Error("expected error for unrecognized rule type")
		}
	})
}

func TestInfer_CycleTerminates(t *testing.T) {
	g := graph.New()
	for _, name := range []string{"x", "y"} {
		if err := g.AddVariable(graph.Variable{Name: name, Prior: 0.5}); err != nil {
			t.Fatal(err)
		}
	}
	rules := []graph.Rule{
		{ID: "xy", Type: graph.RuleTypeImplication, Inputs: []string{"x"}, Output: "y", Op: logic.OpNot, Weight: 1, Learnable: true},
		{ID: "yx", Type: graph.RuleTypeImplication, Inputs: []string{"y"}, Output: "x", Op: logic.OpNot, Weight: 1, Learnable: true},
	}
	for _, r := range rules {
		if err := g.AddRule(r); err != nil {
			t.Fatal(err)
		}
	}

	result, err := Infer(context.Background(), g, &Options{MaxIterations: 10})
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations > 10 {
		t.Errorf("iteration budget exceeded: %d", result.Iterations)
	}
	if !result.Converged && result.State != StateExhausted {
		t.Errorf("non-converged run should report exhausted, got %v", result.State)
	}
	for name, v := range result.Values {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v escaped [0,1]", name, v)
		}
	}
}

func TestInfer_ContextCancellation(t *testing.T) {
	g := chainGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Infer(ctx, g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Converged {
		t.Error("cancelled inference must not report convergence")
	}
	if result.Iterations != 0 {
		t.Errorf("Iterations = %d, expected 0 after immediate cancellation", result.Iterations)
	}
}

func TestInfer_AttackDrivesTargetDown(t *testing.T) {
	g := graph.New()
	for _, v := range []graph.Variable{
		{Name: "attacker", Prior: 0.5},
		{Name: "claim", Prior: 0.8},
	} {
		if err := g.AddVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddConstraint(graph.Constraint{
		ID: "att", Type: graph.ConstraintTypeAttack,
		Source: "attacker", Targets: []string{"claim"}, Weight: 1,
	}); err != nil {
		t.Fatal(err)
	}
	g.LockVariable("attacker", 1)

	result, err := Infer(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}

	// inhibit(t, 1, 1) = 0: a fully-true attacker at full weight
	// drives the target to exactly zero.
	if v := result.Values["claim"]; v != 0 {
		t.Errorf("claim = %v, expected exactly 0", v)
	}
}

func TestInfer_SupportRaisesTarget(t *testing.T) {
	g := graph.New()
	for _, v := range []graph.Variable{
		{Name: "backer", Prior: 0.5},
		{Name: "claim", Prior: 0.2},
	} {
		if err := g.AddVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddConstraint(graph.Constraint{
		ID: "sup", Type: graph.ConstraintTypeSupport,
		Source: "backer", Targets: []string{"claim"}, Weight: 0.5,
	}); err != nil {
		t.Fatal(err)
	}
	g.LockVariable("backer", 1)

	result, err := Infer(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := result.Values["claim"]; v <= 0.2 {
		t.Errorf("claim = %v, expected increase above prior", v)
	}
}

func TestInfer_MutexRespectsLockedHeadroom(t *testing.T) {
	g := graph.New()
	for _, v := range []graph.Variable{
		{Name: "sunny", Prior: 0.6},
		{Name: "cloudy", Prior: 0.6},
		{Name: "raining", Prior: 0.6},
	} {
		if err := g.AddVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddConstraint(graph.Constraint{
		ID: "weather", Type: graph.ConstraintTypeMutex,
		Source: "sunny", Targets: []string{"cloudy", "raining"}, Weight: 1,
	}); err != nil {
		t.Fatal(err)
	}
	g.LockVariable("raining", 0.7)

	result, err := Infer(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}

	if v := result.Values["raining"]; v != 0.7 {
		t.Errorf("locked member changed: %v", v)
	}
	sum := result.Values["sunny"] + result.Values["cloudy"]
	headroom := 1 - 0.7
	if sum > headroom+1e-9 {
		t.Errorf("unlocked members sum to %v, exceeding headroom %v", sum, headroom)
	}
	// Proportional scaling keeps equal values equal.
	if diff := math.Abs(result.Values["sunny"] - result.Values["cloudy"]); diff > 1e-9 {
		t.Errorf("equal members diverged: sunny=%v cloudy=%v", result.Values["sunny"], result.Values["cloudy"])
	}
}

func TestInferWithEvidence_NoCrossCallContamination(t *testing.T) {
	g := chainGraph(t)

	first, err := InferWithEvidence(context.Background(), g, map[string]float64{"a": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Values["b"] <= 0.1 {
		t.Fatalf("b = %v, expected pull above prior", first.Values["b"])
	}

	// A later call with no evidence starts clean: a back at its prior,
	// previous lock discarded.
	second, err := InferWithEvidence(context.Background(), g, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.IsLocked("a") {
		t.Error("previous evidence lock leaked into the next call")
	}
	if second.Values["b"] >= first.Values["b"] {
		t.Errorf("b = %v, expected weaker pull without evidence (was %v)", second.Values["b"], first.Values["b"])
	}
}

func TestInferWithEvidence_UnknownEvidenceIgnored(t *testing.T) {
	g := chainGraph(t)
	result, err := InferWithEvidence(context.Background(), g, map[string]float64{"fog": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, present := result.Values["fog"]; present {
		t.Error("evidence for unknown variables must not create variables")
	}
	if !result.Converged {
		t.Error("run should still converge")
	}
}

func TestQuery(t *testing.T) {
	g := chainGraph(t)

	value, result, err := Query(context.Background(), g, "c", map[string]float64{"a": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if value <= 0.05 {
		t.Errorf("query(c) = %v, expected pull above prior", value)
	}
	if !result.Converged {
		t.Error("expected convergence")
	}

	t.Run("missing variable reports neutral", func(t *testing.T) {
		value, _, err := Query(context.Background(), g, "fog", nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if value != NeutralValue {
			t.Errorf("query(fog) = %v, expected %v", value, NeutralValue)
		}
	})
}

func TestExplain_OmitsEvidence(t *testing.T) {
	g := chainGraph(t)
	out, err := Explain(context.Background(), g, map[string]float64{"a": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, present := out["a"]; present {
		t.Error("evidence variables must be omitted from explanations")
	}
	if len(out) != 2 {
		t.Errorf("expected 2 explained variables, got %d: %v", len(out), out)
	}
}

func TestOptions_Validate(t *testing.T) {
	o := &Options{MaxIterations: -1, ConvergenceThreshold: 0, DampingFactor: 2}
	o.Validate()
	if o.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %d", o.MaxIterations)
	}
	if o.ConvergenceThreshold != DefaultConvergenceThreshold {
		t.Errorf("ConvergenceThreshold = %v", o.ConvergenceThreshold)
	}
	if o.DampingFactor != DefaultDampingFactor {
		t.Errorf("DampingFactor = %v", o.DampingFactor)
	}
}
