// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package schema

import "fmt"

// FieldError locates a single validation failure inside a document.
//
// Path uses dotted map keys and bracketed list indices, for example
// "variables.raining.prior" or "rules[2].inputs".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Report is the outcome of validating a document.
//
// Valid is true exactly when Errors is empty. A Report is data, not an
// error value: validation failures are expected inputs, not exceptions.
type Report struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// validRuleTypes is the closed set of rule type tags.
var validRuleTypes = map[string]bool{
	RuleImplication: true,
	RuleConjunction: true,
	RuleDisjunction: true,
	RuleEquivalence: true,
}

// validConstraintTypes is the closed set of constraint type tags.
var validConstraintTypes = map[string]bool{
	ConstraintAttack:  true,
	ConstraintSupport: true,
	ConstraintMutex:   true,
}

// validOps is the closed set of operator tags.
var validOps = map[string]bool{
	"IDENTITY": true,
	"AND":      true,
	"OR":       true,
	"NOT":      true,
	"WEIGHTED": true,
}

// Validate checks a document against the schema rules and returns a Report.
//
// Validation is total: it accumulates every failure it can find rather than
// stopping at the first, and it never panics. A nil document is invalid.
//
// Checks performed:
//   - version present
//   - variables map present; each type tag valid; each prior in [0, 1]
//   - each rule: unique non-empty id, valid type, non-empty inputs, output
//     present and not among the inputs, valid op, weight in [0, 1]
//   - each constraint: unique non-empty id, valid type, source present,
//     at least one target, weight in [0, 1]
//
// Rules and constraints may reference variables the document does not
// define; such rules simply stay inactive during inference, so validation
// does not reject them.
func Validate(doc *Document) Report {
	var errs []FieldError
	add := func(path, format string, args ...any) {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if doc == nil {
		add("", "document must not be nil")
		return Report{Valid: false, Errors: errs}
	}

	if doc.Version == "" {
		add("version", "must be a non-empty string")
	}

	if doc.Variables == nil {
		add("variables", "must be a mapping of variable definitions")
	}
	for name, v := range doc.Variables {
		path := "variables." + name
		if name == "" {
			add("variables", "variable names must be non-empty")
			continue
		}
		if v.Type != VariableTypeBool && v.Type != VariableTypeContinuous {
			add(path+".type", "must be %q or %q", VariableTypeBool, VariableTypeContinuous)
		}
		if v.Prior != nil && (*v.Prior < 0 || *v.Prior > 1) {
			add(path+".prior", "must be between 0 and 1")
		}
	}

	ruleIDs := make(map[string]bool, len(doc.Rules))
	for i, r := range doc.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		if r.ID == "" {
			add(path+".id", "must be a non-empty string")
		} else if ruleIDs[r.ID] {
			add(path+".id", "duplicate rule id %q", r.ID)
		} else {
			ruleIDs[r.ID] = true
		}
		if !validRuleTypes[r.Type] {
			add(path+".type", "must be one of IMPLICATION, CONJUNCTION, DISJUNCTION, EQUIVALENCE")
		}
		if len(r.Inputs) == 0 {
			add(path+".inputs", "must contain at least one variable name")
		}
		for j, in := range r.Inputs {
			if in == "" {
				add(fmt.Sprintf("%s.inputs[%d]", path, j), "must be a non-empty string")
			}
		}
		if r.Output == "" {
			add(path+".output", "must be a non-empty string")
		} else {
			for _, in := range r.Inputs {
				if in == r.Output {
					add(path+".output", "must not also appear in inputs")
					break
				}
			}
		}
		if r.Op != "" && !validOps[r.Op] {
			add(path+".op", "must be one of IDENTITY, AND, OR, NOT, WEIGHTED")
		}
		if r.Weight != nil && (*r.Weight < 0 || *r.Weight > 1) {
			add(path+".weight", "must be between 0 and 1")
		}
	}

	constraintIDs := make(map[string]bool, len(doc.Constraints))
	for i, c := range doc.Constraints {
		path := fmt.Sprintf("constraints[%d]", i)
		if c.ID == "" {
			add(path+".id", "must be a non-empty string")
		} else if constraintIDs[c.ID] {
			add(path+".id", "duplicate constraint id %q", c.ID)
		} else {
			constraintIDs[c.ID] = true
		}
		if !validConstraintTypes[c.Type] {
			add(path+".type", "must be one of ATTACK, SUPPORT, MUTEX")
		}
		if c.Source == "" {
			add(path+".source", "must be a non-empty string")
		}
		if len(c.Target) == 0 {
			add(path+".target", "must name at least one variable")
		}
		for j, target := range c.Target {
			if target == "" {
				add(fmt.Sprintf("%s.target[%d]", path, j), "must be a non-empty string")
			}
		}
		if c.Weight != nil && (*c.Weight < 0 || *c.Weight > 1) {
			add(path+".weight", "must be between 0 and 1")
		}
	}

	return Report{Valid: len(errs) == 0, Errors: errs}
}
