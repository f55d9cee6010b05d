// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

// TopologicalOrder returns variable names ordered so that rule inputs
// come before the outputs they feed.
//
// Description:
//
//	Runs Kahn's algorithm over the dependency edges implied by rules
//	(each input precedes its output). Ready variables are taken in
//	insertion order so the result is deterministic. Variables caught
//	in cycles have no valid position; they are appended after the
//	acyclic portion, in insertion order, so the solver still visits
//	every variable each pass.
//
// Outputs:
//
//	A permutation of VariableNames(). Never omits a variable.
func (g *Graph) TopologicalOrder() []string {
	indegree := make(map[string]int, len(g.variables))
	for _, name := range g.variableOrder {
		indegree[name] = 0
	}

	// Count each input->output dependency once per rule, ignoring edges
	// that mention variables absent from the graph.
	for _, id := range g.ruleOrder {
		r := g.rules[id]
		if _, ok := g.variables[r.Output]; !ok {
			continue
		}
		for _, in := range r.Inputs {
			if _, ok := g.variables[in]; !ok {
				continue
			}
			indegree[r.Output]++
		}
	}

	order := make([]string, 0, len(g.variableOrder))
	queue := make([]string, 0, len(g.variableOrder))
	for _, name := range g.variableOrder {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	visited := make(map[string]bool, len(g.variableOrder))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		order = append(order, name)

		for _, r := range g.rulesByInput[name] {
			out := r.Output
			if _, ok := g.variables[out]; !ok {
				continue
			}
			indegree[out]--
			if indegree[out] == 0 {
				queue = append(queue, out)
			}
		}
	}

	// Cyclic remainder: everything Kahn could not place.
	for _, name := range g.variableOrder {
		if !visited[name] {
			order = append(order, name)
		}
	}

	return order
}
