// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"sort"
	"strings"

	"github.com/neurosym/neurosym/services/reason/logic"
)

// Default values applied when a document leaves a field unset.
const (
	// DefaultPrior is the resting truth value for variables without an
	// explicit prior.
	DefaultPrior = 0.5

	// DefaultWeight is the strength for rules and constraints without an
	// explicit weight.
	DefaultWeight = 1.0
)

// RuleType classifies how a rule combines its inputs.
type RuleType int

const (
	// RuleTypeUnknown indicates an unrecognized rule type.
	RuleTypeUnknown RuleType = iota

	// RuleTypeImplication propagates a single antecedent to its consequent.
	RuleTypeImplication

	// RuleTypeConjunction combines inputs with the Lukasiewicz AND.
	RuleTypeConjunction

	// RuleTypeDisjunction combines inputs with the Lukasiewicz OR.
	RuleTypeDisjunction

	// RuleTypeEquivalence ties two variables to the same truth value.
	RuleTypeEquivalence

	// NumRuleTypes is the total number of rule types (for array sizing).
	NumRuleTypes
)

// ruleTypeNames maps RuleType values to their wire representations.
var ruleTypeNames = map[RuleType]string{
	RuleTypeUnknown:     "UNKNOWN",
	RuleTypeImplication: "IMPLICATION",
	RuleTypeConjunction: "CONJUNCTION",
	RuleTypeDisjunction: "DISJUNCTION",
	RuleTypeEquivalence: "EQUIVALENCE",
}

// String returns the wire representation of the RuleType.
func (t RuleType) String() string {
	if name, ok := ruleTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseRuleType converts a wire tag to a RuleType. Matching is
// case-insensitive. Unknown tags map to RuleTypeUnknown.
func ParseRuleType(s string) RuleType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IMPLICATION":
		return RuleTypeImplication
	case "CONJUNCTION":
		return RuleTypeConjunction
	case "DISJUNCTION":
		return RuleTypeDisjunction
	case "EQUIVALENCE":
		return RuleTypeEquivalence
	default:
		return RuleTypeUnknown
	}
}

// ConstraintType classifies the argumentation relation a constraint applies.
type ConstraintType int

const (
	// ConstraintTypeUnknown indicates an unrecognized constraint type.
	ConstraintTypeUnknown ConstraintType = iota

	// ConstraintTypeAttack suppresses the target in proportion to the
	// source's truth value.
	ConstraintTypeAttack

	// ConstraintTypeSupport raises the target toward 1 in proportion to
	// the source's truth value.
	ConstraintTypeSupport

	// ConstraintTypeMutex keeps the values of a variable group from
	// summing above 1.
	ConstraintTypeMutex

	// NumConstraintTypes is the total number of constraint types.
	NumConstraintTypes
)

// constraintTypeNames maps ConstraintType values to their wire representations.
var constraintTypeNames = map[ConstraintType]string{
	ConstraintTypeUnknown: "UNKNOWN",
	ConstraintTypeAttack:  "ATTACK",
	ConstraintTypeSupport: "SUPPORT",
	ConstraintTypeMutex:   "MUTEX",
}

// String returns the wire representation of the ConstraintType.
func (t ConstraintType) String() string {
	if name, ok := constraintTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseConstraintType converts a wire tag to a ConstraintType. Matching
// is case-insensitive. Unknown tags map to ConstraintTypeUnknown.
func ParseConstraintType(s string) ConstraintType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ATTACK":
		return ConstraintTypeAttack
	case "SUPPORT":
		return ConstraintTypeSupport
	case "MUTEX":
		return ConstraintTypeMutex
	default:
		return ConstraintTypeUnknown
	}
}

// Variable is a named fuzzy proposition.
type Variable struct {
	// Name uniquely identifies the variable within a graph.
	Name string

	// Kind is the declared variable type tag ("bool" or "continuous").
	// Both kinds hold values in [0,1]; the tag is descriptive.
	Kind string

	// Prior is the resting truth value the variable returns to on reset.
	Prior float64

	// LockedByDefault marks variables that start locked at their prior.
	LockedByDefault bool

	// Description is optional human-readable documentation.
	Description string
}

// Rule is a directed hyperedge computing an output variable from inputs.
type Rule struct {
	// ID uniquely identifies the rule within a graph.
	ID string

	// Type classifies how the inputs combine.
	Type RuleType

	// Inputs are the names of the variables the rule reads.
	Inputs []string

	// Output is the name of the variable the rule writes.
	Output string

	// Op selects the input combination operation for IMPLICATION rules.
	Op logic.Operation

	// Weight scales the rule's contribution, in [0,1].
	Weight float64

	// Learnable marks the weight as adjustable by training.
	Learnable bool

	// Description is optional human-readable documentation.
	Description string
}

// Constraint is an argumentation edge adjusting values after propagation.
type Constraint struct {
	// ID uniquely identifies the constraint within a graph.
	ID string

	// Type classifies the adjustment applied.
	Type ConstraintType

	// Source is the name of the variable driving the adjustment. For
	// MUTEX constraints the source is a member of the group.
	Source string

	// Targets are the names of the variables being adjusted.
	Targets []string

	// Weight scales the adjustment, in [0,1].
	Weight float64

	// Description is optional human-readable documentation.
	Description string
}

// Members returns the full variable group a MUTEX constraint covers,
// meaning the source plus all targets with duplicates removed, sorted.
func (c *Constraint) Members() []string {
	seen := make(map[string]bool, len(c.Targets)+1)
	members := make([]string, 0, len(c.Targets)+1)
	for _, name := range append([]string{c.Source}, c.Targets...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		members = append(members, name)
	}
	sort.Strings(members)
	return members
}

// VariableState is the mutable runtime state attached to a variable.
type VariableState struct {
	// Value is the variable's current truth value in [0,1].
	Value float64

	// Locked prevents propagation and SetValue from changing Value.
	Locked bool

	// Gradient is a scratch accumulator for gradient-based extensions.
	// Propagation never reads it; ResetToPriors zeroes it.
	Gradient float64
}

// Stats summarizes graph contents for logging and health endpoints.
type Stats struct {
	Variables   int `json:"variables"`
	Rules       int `json:"rules"`
	Constraints int `json:"constraints"`
	Locked      int `json:"locked"`
	Learnable   int `json:"learnable_rules"`
}
