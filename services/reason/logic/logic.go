// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logic implements the Lukasiewicz fuzzy-logic connectives and
// argumentation operators the reasoning engine is built on.
//
// All functions are pure and operate on truth values in [0, 1]. Outputs are
// clamped to [0, 1]; inputs are NOT validated. Callers are responsible for
// clamping values before they enter the algebra.
//
// The connective family is the Lukasiewicz T-norm/T-conorm:
//
//	and(v1..vn) = max(0, Σvi - (n-1))
//	or(v1..vn)  = min(1, Σvi)
//
// which is associative, commutative, and De Morgan dual under negation.
package logic

import "math"

// Clamp restricts a value to the [0, 1] range.
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// IsTruthValue reports whether v is a valid truth value in [0, 1].
// NaN is not a truth value.
func IsTruthValue(v float64) bool {
	return v >= 0 && v <= 1
}

// Not is the Lukasiewicz negation: NOT(a) = 1 - a.
func Not(a float64) float64 {
	return Clamp(1 - a)
}

// And is the Lukasiewicz T-norm.
//
// The empty conjunction is 1 (identity element) and a single input passes
// through clamped. For n >= 2 inputs the result is max(0, Σvi - (n-1)).
//
// Properties: commutative, associative, 1 is identity, 0 is annihilator.
func And(values ...float64) float64 {
	switch len(values) {
	case 0:
		return 1
	case 1:
		return Clamp(values[0])
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return Clamp(total - float64(len(values)-1))
}

// Or is the Lukasiewicz T-conorm.
//
// The empty disjunction is 0 (identity element) and a single input passes
// through clamped. For n >= 2 inputs the result is min(1, Σvi).
//
// Properties: commutative, associative, 0 is identity, 1 is annihilator.
func Or(values ...float64) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return Clamp(values[0])
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return Clamp(total)
}

// Implies is the Lukasiewicz implication: a → b = min(1, 1 - a + b).
//
// Identities: Implies(1, b) = b, Implies(a, 1) = 1, Implies(0, b) = 1.
func Implies(antecedent, consequent float64) float64 {
	return Clamp(1 - antecedent + consequent)
}

// Equivalent is the Lukasiewicz equivalence: a ↔ b = 1 - |a - b|.
// Symmetric in its arguments.
func Equivalent(a, b float64) float64 {
	return Clamp(1 - math.Abs(a-b))
}

// Inhibit applies an attack relation: target' = target * (1 - attacker*weight).
//
// Monotone non-increasing in attacker. A fully true attacker at weight 1
// drives the target to 0; an attacker at 0 leaves the target unchanged.
func Inhibit(target, attacker, weight float64) float64 {
	return Clamp(target * (1 - attacker*weight))
}

// Support applies a support relation:
// target' = target + (1 - target) * supporter * weight.
//
// Monotone non-decreasing in supporter and bounded above by 1. A supporter
// at 0 leaves the target unchanged.
func Support(target, supporter, weight float64) float64 {
	return Clamp(target + (1-target)*supporter*weight)
}

// MutexNormalize enforces mutual exclusion over a set of truth values.
//
// If the values sum to at most 1 they are returned clamped and otherwise
// unchanged. If the sum exceeds 1, every value is scaled by 1/Σ so the result
// sums to exactly 1. Scaling is proportional: relative proportions between
// the inputs are preserved.
func MutexNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	out := make([]float64, len(values))
	if total <= 1 {
		for i, v := range values {
			out[i] = Clamp(v)
		}
		return out
	}
	for i, v := range values {
		out[i] = Clamp(v / total)
	}
	return out
}

// WeightedPair couples a truth value with its weight for WeightedAverage.
type WeightedPair struct {
	Value  float64
	Weight float64
}

// WeightedAverage computes Σ(value·weight)/Σweight over the pairs.
//
// An empty list or a zero total weight yields 0.5, the neutral prior.
func WeightedAverage(pairs []WeightedPair) float64 {
	if len(pairs) == 0 {
		return 0.5
	}
	totalWeight := 0.0
	weightedSum := 0.0
	for _, p := range pairs {
		totalWeight += p.Weight
		weightedSum += p.Value * p.Weight
	}
	if totalWeight == 0 {
		return 0.5
	}
	return Clamp(weightedSum / totalWeight)
}
