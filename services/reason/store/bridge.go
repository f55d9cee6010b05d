// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/neurosym/neurosym/services/reason/graph"
	"github.com/neurosym/neurosym/services/reason/schema"
	"github.com/neurosym/neurosym/services/reason/solver"
)

// Logic relation tags carried on associations.
const (
	// RelationImplies maps to an implication rule.
	RelationImplies = "IMPLIES"

	// RelationAttacks maps to an attack constraint.
	RelationAttacks = "ATTACKS"

	// RelationSupports maps to a support constraint.
	RelationSupports = "SUPPORTS"

	// RelationDepends maps to an implication rule at half the stated
	// weight, reflecting the weaker coupling of a dependency.
	RelationDepends = "DEPENDS"
)

// DefaultNeighborhoodDepth bounds the BFS used to build solve contexts.
const DefaultNeighborhoodDepth = 2

// Node is a knowledge entity that can participate in reasoning.
type Node struct {
	// ID uniquely identifies the node. Assigned by SaveNode if empty.
	ID string `json:"id"`

	// Label is the human-readable name.
	Label string `json:"label"`

	// Prior is the node's resting truth value in [0,1].
	Prior float64 `json:"prior"`

	// Metadata carries arbitrary annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Association is a typed logical relation between two nodes.
type Association struct {
	// ID uniquely identifies the association. Assigned by
	// SaveAssociation if empty.
	ID string `json:"id"`

	// FromID is the source node ID.
	FromID string `json:"from_id"`

	// ToID is the target node ID.
	ToID string `json:"to_id"`

	// Relation is one of the logic relation tags.
	Relation string `json:"relation"`

	// Weight is the relation strength in [0,1].
	Weight float64 `json:"weight"`
}

// ContextGraph is a slice of the stored knowledge graph prepared for
// reasoning.
type ContextGraph struct {
	Nodes        []Node        `json:"nodes"`
	Associations []Association `json:"associations"`
}

// SaveNode stores a node, assigning an ID if it has none.
func (s *Store) SaveNode(n *Node) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding node %q: %w", n.ID, err)
	}
	return s.set(prefixNode+n.ID, data)
}

// GetNode loads a node by ID.
func (s *Store) GetNode(id string) (*Node, error) {
	data, err := s.get(prefixNode + id)
	if err != nil {
		return nil, err
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decoding node %q: %w", id, err)
	}
	return &n, nil
}

// SaveAssociation stores an association, assigning an ID if it has
// none. Both endpoint nodes must already exist.
func (s *Store) SaveAssociation(a *Association) error {
	if _, err := s.GetNode(a.FromID); err != nil {
		return fmt.Errorf("association source: %w", err)
	}
	if _, err := s.GetNode(a.ToID); err != nil {
		return fmt.Errorf("association target: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding association %q: %w", a.ID, err)
	}
	return s.set(prefixAssociation+a.ID, data)
}

// ListAssociations returns every stored association.
func (s *Store) ListAssociations() ([]Association, error) {
	out := make([]Association, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAssociation)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var a Association
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// Neighborhood collects the nodes and associations reachable from root
// within depth hops, following associations in both directions.
func (s *Store) Neighborhood(rootID string, depth int) (*ContextGraph, error) {
	root, err := s.GetNode(rootID)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = DefaultNeighborhoodDepth
	}

	assocs, err := s.ListAssociations()
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{root.ID: true}
	frontier := []string{root.ID}
	picked := make(map[string]bool)
	cg := &ContextGraph{Nodes: []Node{*root}}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		next := make([]string, 0)
		for _, a := range assocs {
			var neighbor string
			switch {
			case containsID(frontier, a.FromID):
				neighbor = a.ToID
			case containsID(frontier, a.ToID):
				neighbor = a.FromID
			default:
				continue
			}
			if !picked[a.ID] {
				picked[a.ID] = true
				cg.Associations = append(cg.Associations, a)
			}
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			n, err := s.GetNode(neighbor)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			cg.Nodes = append(cg.Nodes, *n)
			next = append(next, neighbor)
		}
		frontier = next
	}

	return cg, nil
}

// VariableName returns the logic variable name a node is bound to.
func VariableName(nodeID string) string {
	return "node_" + nodeID
}

// ToDocument synthesizes a schema document from the context graph,
// translating each association into a rule or constraint by its
// relation tag. Unknown relation tags are skipped.
func (cg *ContextGraph) ToDocument(name string) *schema.Document {
	doc := &schema.Document{
		Version:   schema.Version,
		Name:      name,
		Variables: make(map[string]schema.VariableSpec, len(cg.Nodes)),
	}

	for _, n := range cg.Nodes {
		prior := n.Prior
		doc.Variables[VariableName(n.ID)] = schema.VariableSpec{
			Type:        schema.VariableTypeContinuous,
			Prior:       &prior,
			Description: n.Label,
		}
	}

	for i, a := range cg.Associations {
		id := fmt.Sprintf("rule_%d_%s", i, shortID(a.ID))
		weight := a.Weight
		from := VariableName(a.FromID)
		to := VariableName(a.ToID)

		switch strings.ToUpper(a.Relation) {
		case RelationImplies:
			doc.Rules = append(doc.Rules, schema.RuleSpec{
				ID:     id,
				Type:   schema.RuleImplication,
				Inputs: []string{from},
				Output: to,
				Op:     "IDENTITY",
				Weight: &weight,
			})
		case RelationDepends:
			half := weight * 0.5
			doc.Rules = append(doc.Rules, schema.RuleSpec{
				ID:     id,
				Type:   schema.RuleImplication,
				Inputs: []string{from},
				Output: to,
				Op:     "IDENTITY",
				Weight: &half,
			})
		case RelationAttacks:
			doc.Constraints = append(doc.Constraints, schema.ConstraintSpec{
				ID:     id,
				Type:   schema.ConstraintAttack,
				Source: from,
				Target: schema.TargetList{to},
				Weight: &weight,
			})
		case RelationSupports:
			doc.Constraints = append(doc.Constraints, schema.ConstraintSpec{
				ID:     id,
				Type:   schema.ConstraintSupport,
				Source: from,
				Target: schema.TargetList{to},
				Weight: &weight,
			})
		}
	}

	return doc
}

// SolveContext builds a reasoning context around rootID, locks the
// given node IDs as evidence, runs inference over it, and writes the
// inferred truth values back to the store keyed by node ID under the
// context's name.
//
// Evidence keys are raw node IDs; they are translated to variable
// names before locking.
func (s *Store) SolveContext(ctx context.Context, rootID string, depth int, evidence map[string]float64, opts *solver.Options) (*solver.Result, *ContextGraph, error) {
	cg, err := s.Neighborhood(rootID, depth)
	if err != nil {
		return nil, nil, err
	}

	contextName := "context_" + shortID(rootID)
	doc := cg.ToDocument(contextName)
	g, _, err := graph.FromDocument(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("building context graph: %w", err)
	}

	translated := make(map[string]float64, len(evidence))
	for nodeID, value := range evidence {
		translated[VariableName(nodeID)] = value
	}

	result, err := solver.InferWithEvidence(ctx, g, translated, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("solving context graph: %w", err)
	}

	values := make(map[string]float64, len(cg.Nodes))
	for _, n := range cg.Nodes {
		if v, ok := result.Values[VariableName(n.ID)]; ok {
			values[n.ID] = v
		}
	}
	if err := s.SaveValues(contextName, values); err != nil {
		return nil, nil, fmt.Errorf("persisting context values: %w", err)
	}

	return result, cg, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
