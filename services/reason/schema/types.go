// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package schema defines the serializable boundary format for logic graphs.
//
// A Document describes a complete logic graph (variables, rules, and
// constraints) in a form suitable for JSON or YAML persistence and for
// exchange with other NeuroSym implementations. The package also implements
// the validation gate: every document entering the engine passes through
// Validate, which reports structured field-path errors and never panics.
//
// Inside the engine, rule and constraint tags become typed enums and
// constraint targets are always slices. The string/array union on the
// constraint `target` field exists only here, at the serialization edge.
package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Version is the document format version this package produces.
const Version = "1.0"

// Variable type tags.
const (
	VariableTypeBool       = "bool"
	VariableTypeContinuous = "continuous"
)

// Rule type tags. The set is closed; validation rejects anything else.
const (
	RuleImplication = "IMPLICATION"
	RuleConjunction = "CONJUNCTION"
	RuleDisjunction = "DISJUNCTION"
	RuleEquivalence = "EQUIVALENCE"
)

// Constraint type tags.
const (
	ConstraintAttack  = "ATTACK"
	ConstraintSupport = "SUPPORT"
	ConstraintMutex   = "MUTEX"
)

// Document is a complete serializable logic graph definition.
type Document struct {
	// Version is the document format version. Required.
	Version string `json:"version" yaml:"version"`

	// Name optionally identifies the graph.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description optionally documents the graph's purpose.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Variables maps variable name to its definition. Required.
	Variables map[string]VariableSpec `json:"variables" yaml:"variables"`

	// Rules holds the directed productions of the graph.
	Rules []RuleSpec `json:"rules" yaml:"rules"`

	// Constraints holds the relations outside the rule DAG.
	Constraints []ConstraintSpec `json:"constraints" yaml:"constraints"`

	// Metadata carries arbitrary annotations. Ignored by the engine.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// VariableSpec defines a named proposition.
//
// The type tag only documents intent; boolean-collapsing and continuous
// variables propagate identically.
type VariableSpec struct {
	// Type is "bool" or "continuous".
	Type string `json:"type" yaml:"type"`

	// Prior is the resting truth value in [0, 1] absent evidence or rule
	// influence. Defaults to 0.5 when omitted.
	Prior *float64 `json:"prior,omitempty" yaml:"prior,omitempty"`

	// Locked marks the variable as evidence from load time on.
	Locked bool `json:"locked,omitempty" yaml:"locked,omitempty"`

	// Description optionally documents the proposition.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PriorOrDefault returns the prior, or 0.5 when omitted.
func (v VariableSpec) PriorOrDefault() float64 {
	if v.Prior == nil {
		return 0.5
	}
	return *v.Prior
}

// RuleSpec defines a directed production over variables.
type RuleSpec struct {
	// ID uniquely identifies the rule within the document.
	ID string `json:"id" yaml:"id"`

	// Type is one of IMPLICATION, CONJUNCTION, DISJUNCTION, EQUIVALENCE.
	Type string `json:"type" yaml:"type"`

	// Inputs is the ordered, non-empty list of input variable names.
	Inputs []string `json:"inputs" yaml:"inputs"`

	// Output is the single variable the rule writes to. Must not appear
	// in Inputs.
	Output string `json:"output" yaml:"output"`

	// Op is the input-combination operator (IDENTITY, AND, OR, NOT,
	// WEIGHTED). Defaults to IDENTITY when omitted.
	Op string `json:"op,omitempty" yaml:"op,omitempty"`

	// Weight is the rule's confidence in [0, 1]. Defaults to 1.
	Weight *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`

	// Learnable controls whether training may adjust the weight.
	// Defaults to true.
	Learnable *bool `json:"learnable,omitempty" yaml:"learnable,omitempty"`

	// Description optionally documents the rule.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// WeightOrDefault returns the weight, or 1 when omitted.
func (r RuleSpec) WeightOrDefault() float64 {
	if r.Weight == nil {
		return 1
	}
	return *r.Weight
}

// IsLearnable reports whether training may adjust the rule's weight.
func (r RuleSpec) IsLearnable() bool {
	return r.Learnable == nil || *r.Learnable
}

// OpOrDefault returns the operator tag, or IDENTITY when omitted.
func (r RuleSpec) OpOrDefault() string {
	if r.Op == "" {
		return "IDENTITY"
	}
	return r.Op
}

// ConstraintSpec defines an attack, support, or mutual-exclusion relation.
type ConstraintSpec struct {
	// ID uniquely identifies the constraint within the document.
	ID string `json:"id" yaml:"id"`

	// Type is one of ATTACK, SUPPORT, MUTEX.
	Type string `json:"type" yaml:"type"`

	// Source is the attacking/supporting variable. For MUTEX it is the
	// first member of the exclusion set.
	Source string `json:"source" yaml:"source"`

	// Target holds the constrained variable(s). Serialized as a bare
	// string when there is exactly one.
	Target TargetList `json:"target" yaml:"target"`

	// Weight is the constraint strength in [0, 1]. Defaults to 1.
	Weight *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`

	// Description optionally documents the constraint.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// WeightOrDefault returns the weight, or 1 when omitted.
func (c ConstraintSpec) WeightOrDefault() float64 {
	if c.Weight == nil {
		return 1
	}
	return *c.Weight
}

// TargetList is the string-or-array union for constraint targets.
//
// Internally it is always a slice; a single-element list round-trips
// through JSON and YAML as a bare string for compatibility with documents
// written by hand or by other NeuroSym implementations.
type TargetList []string

// UnmarshalJSON accepts either a string or an array of strings.
func (t *TargetList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TargetList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("target must be a string or an array of strings")
	}
	*t = TargetList(many)
	return nil
}

// MarshalJSON emits a bare string for single targets, an array otherwise.
func (t TargetList) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// UnmarshalYAML accepts either a scalar or a sequence of scalars.
func (t *TargetList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*t = TargetList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*t = TargetList(many)
		return nil
	default:
		return fmt.Errorf("target must be a string or a sequence of strings")
	}
}

// MarshalYAML emits a bare scalar for single targets, a sequence otherwise.
func (t TargetList) MarshalYAML() (any, error) {
	if len(t) == 1 {
		return t[0], nil
	}
	return []string(t), nil
}
