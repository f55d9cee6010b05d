// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOperation is returned when Apply receives an operation outside
// the closed Operation set. An unknown operation indicates a corrupted or
// forward-incompatible schema that validation should have rejected, so the
// dispatcher fails fast instead of defaulting.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is the input-combination operator applied inside a rule before
// the rule-type-specific combination.
type Operation int

const (
	// OpIdentity passes the first input through unchanged.
	OpIdentity Operation = iota

	// OpAnd combines inputs with the Lukasiewicz T-norm.
	OpAnd

	// OpOr combines inputs with the Lukasiewicz T-conorm.
	OpOr

	// OpNot negates the first input.
	OpNot

	// OpWeighted combines inputs with a weighted average.
	OpWeighted

	// NumOperations is the total number of operations (for exhaustiveness
	// checks and array sizing).
	NumOperations
)

// operationNames maps Operation values to their serialized form.
var operationNames = map[Operation]string{
	OpIdentity: "IDENTITY",
	OpAnd:      "AND",
	OpOr:       "OR",
	OpNot:      "NOT",
	OpWeighted: "WEIGHTED",
}

// String returns the serialized name of the operation.
func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseOperation converts a serialized operation name to its Operation.
// Matching is case-insensitive. Returns ErrUnknownOperation for names
// outside the closed set.
func ParseOperation(s string) (Operation, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for op, name := range operationNames {
		if name == upper {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// Apply dispatches an operation over input truth values.
//
// The weights slice is only consulted for OpWeighted: when present and of
// equal length to inputs it selects a weighted average, otherwise the
// operation falls back to an unweighted arithmetic mean. Zero inputs yield
// the neutral prior 0.5 for OpIdentity, OpNot, and OpWeighted.
//
// An operation outside the closed set returns ErrUnknownOperation.
func Apply(op Operation, inputs []float64, weights []float64) (float64, error) {
	switch op {
	case OpIdentity:
		if len(inputs) == 0 {
			return 0.5, nil
		}
		return Clamp(inputs[0]), nil
	case OpAnd:
		return And(inputs...), nil
	case OpOr:
		return Or(inputs...), nil
	case OpNot:
		if len(inputs) == 0 {
			return 0.5, nil
		}
		return Not(inputs[0]), nil
	case OpWeighted:
		if len(inputs) == 0 {
			return 0.5, nil
		}
		if len(weights) == len(inputs) {
			pairs := make([]WeightedPair, len(inputs))
			for i, v := range inputs {
				pairs[i] = WeightedPair{Value: v, Weight: weights[i]}
			}
			return WeightedAverage(pairs), nil
		}
		total := 0.0
		for _, v := range inputs {
			total += v
		}
		return Clamp(total / float64(len(inputs))), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownOperation, op)
	}
}
