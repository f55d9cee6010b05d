// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph provides the logic graph: a mutable network of fuzzy
// variables connected by rules and argumentation constraints.
//
// Nodes are named variables holding truth values in [0,1]. Rules are
// directed hyperedges that compute an output variable from one or more
// input variables. Constraints (ATTACK, SUPPORT, MUTEX) adjust values
// after rule propagation.
//
// # State Model
//
// Each variable carries a prior (its resting value), a current value,
// and a locked flag. Locked variables represent observed evidence and
// are never overwritten by propagation or by SetValue.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use. It assumes single-writer
// access: the solver and trainer mutate runtime state directly.
// Callers needing concurrency must synchronize externally or operate
// on independent Clone() copies.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrDuplicateVariable is returned when adding a variable whose name
	// already exists in the graph.
	ErrDuplicateVariable = errors.New("duplicate variable name")

	// ErrDuplicateRule is returned when adding a rule with an ID that
	// already exists in the graph.
	ErrDuplicateRule = errors.New("duplicate rule ID")

	// ErrDuplicateConstraint is returned when adding a constraint with an
	// ID that already exists in the graph.
	ErrDuplicateConstraint = errors.New("duplicate constraint ID")

	// ErrSelfLoop is returned when a rule lists its output variable among
	// its own inputs.
	ErrSelfLoop = errors.New("rule output must not appear in its inputs")

	// ErrRuleNotFound is returned when looking up a rule by an unknown ID.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrVariableNotFound is returned when an operation names a variable
	// that does not exist in the graph.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrInvalidVariable is returned when adding a variable that fails
	// validation, such as an empty name.
	ErrInvalidVariable = errors.New("invalid variable")

	// ErrInvalidDocument is returned when loading a document that fails
	// schema validation. The graph is left unchanged.
	ErrInvalidDocument = errors.New("invalid document")
)
