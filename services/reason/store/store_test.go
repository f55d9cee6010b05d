// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/neurosym/neurosym/services/reason/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(InMemoryConfig())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func sampleDocument(name string) *schema.Document {
	prior := 0.3
	return &schema.Document{
		Version: schema.Version,
		Name:    name,
		Variables: map[string]schema.VariableSpec{
			"a": {Type: schema.VariableTypeBool, Prior: &prior},
		},
	}
}

func TestDocumentCRUD(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDocument("weather", sampleDocument("weather")); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if err := s.SaveDocument("traffic", sampleDocument("traffic")); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	doc, err := s.GetDocument("weather")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Name != "weather" || len(doc.Variables) != 1 {
		t.Errorf("round trip lost data: %+v", doc)
	}

	names, err := s.ListDocuments()
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("ListDocuments = %v", names)
	}

	if err := s.DeleteDocument("weather"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument("weather"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	t.Run("empty name rejected", func(t *testing.T) {
		if err := s.SaveDocument("", sampleDocument("")); err == nil {
			t.Error("expected error for empty name")
		}
	})
}

func TestValuesPersistence(t *testing.T) {
	s := newTestStore(t)

	values := map[string]float64{"a": 0.7, "b": 0.25}
	if err := s.SaveValues("weather", values); err != nil {
		t.Fatalf("SaveValues: %v", err)
	}

	got, err := s.GetValues("weather")
	if err != nil {
		t.Fatalf("GetValues: %v", err)
	}
	if got["a"] != 0.7 || got["b"] != 0.25 {
		t.Errorf("GetValues = %v", got)
	}

	if _, err := s.GetValues("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNodeAndAssociation(t *testing.T) {
	s := newTestStore(t)

	a := &Node{Label: "raining", Prior: 0.3}
	b := &Node{Label: "wet ground", Prior: 0.1}
	for _, n := range []*Node{a, b} {
		if err := s.SaveNode(n); err != nil {
			t.Fatalf("SaveNode: %v", err)
		}
		if n.ID == "" {
			t.Fatal("SaveNode should assign an ID")
		}
	}

	assoc := &Association{FromID: a.ID, ToID: b.ID, Relation: RelationImplies, Weight: 0.9}
	if err := s.SaveAssociation(assoc); err != nil {
		t.Fatalf("SaveAssociation: %v", err)
	}
	if assoc.ID == "" {
		t.Fatal("SaveAssociation should assign an ID")
	}

	t.Run("dangling endpoints rejected", func(t *testing.T) {
		bad := &Association{FromID: a.ID, ToID: "missing", Relation: RelationImplies, Weight: 1}
		if err := s.SaveAssociation(bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	got, err := s.GetNode(a.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Label != "raining" || got.Prior != 0.3 {
		t.Errorf("GetNode = %+v", got)
	}
}

// threeNodeChain stores a -> b -> c with IMPLIES associations and
// returns the nodes.
func threeNodeChain(t *testing.T, s *Store) (*Node, *Node, *Node) {
	t.Helper()
	a := &Node{Label: "a", Prior: 0.3}
	b := &Node{Label: "b", Prior: 0.1}
	c := &Node{Label: "c", Prior: 0.05}
	for _, n := range []*Node{a, b, c} {
		if err := s.SaveNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, assoc := range []*Association{
		{FromID: a.ID, ToID: b.ID, Relation: RelationImplies, Weight: 0.9},
		{FromID: b.ID, ToID: c.ID, Relation: RelationImplies, Weight: 0.8},
	} {
		if err := s.SaveAssociation(assoc); err != nil {
			t.Fatal(err)
		}
	}
	return a, b, c
}

func TestNeighborhood(t *testing.T) {
	s := newTestStore(t)
	a, _, _ := threeNodeChain(t, s)

	t.Run("depth 1 stops at direct neighbors", func(t *testing.T) {
		cg, err := s.Neighborhood(a.ID, 1)
		if err != nil {
			t.Fatalf("Neighborhood: %v", err)
		}
		if len(cg.Nodes) != 2 {
			t.Errorf("expected 2 nodes at depth 1, got %d", len(cg.Nodes))
		}
	})

	t.Run("depth 2 reaches the whole chain", func(t *testing.T) {
		cg, err := s.Neighborhood(a.ID, 2)
		if err != nil {
			t.Fatalf("Neighborhood: %v", err)
		}
		if len(cg.Nodes) != 3 {
			t.Errorf("expected 3 nodes at depth 2, got %d", len(cg.Nodes))
		}
		if len(cg.Associations) != 2 {
			t.Errorf("expected 2 associations, got %d", len(cg.Associations))
		}
	})

	t.Run("unknown root", func(t *testing.T) {
		if _, err := s.Neighborhood("missing", 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestContextGraph_ToDocument(t *testing.T) {
	cg := &ContextGraph{
		Nodes: []Node{
			{ID: "n1", Label: "first", Prior: 0.3},
			{ID: "n2", Label: "second", Prior: 0.5},
		},
		Associations: []Association{
			{ID: "aaaabbbbcccc", FromID: "n1", ToID: "n2", Relation: RelationImplies, Weight: 0.9},
			{ID: "ddddeeeeffff", FromID: "n1", ToID: "n2", Relation: RelationDepends, Weight: 0.8},
			{ID: "gggghhhhiiii", FromID: "n2", ToID: "n1", Relation: RelationAttacks, Weight: 0.6},
			{ID: "jjjjkkkkllll", FromID: "n2", ToID: "n1", Relation: RelationSupports, Weight: 0.4},
			{ID: "mmmmnnnnoooo", FromID: "n1", ToID: "n2", Relation: "UNRELATED", Weight: 1},
		},
	}

	doc := cg.ToDocument("ctx")
	report := schema.Validate(doc)
	if !report.Valid {
		t.Fatalf("synthesized document invalid: %v", report.Errors)
	}

	if len(doc.Variables) != 2 {
		t.Errorf("variables = %d", len(doc.Variables))
	}
	if _, ok := doc.Variables["node_n1"]; !ok {
		t.Error("node IDs should map to node_<id> variables")
	}
	if len(doc.Rules) != 2 {
		t.Fatalf("expected IMPLIES and DEPENDS to become rules, got %d", len(doc.Rules))
	}
	// DEPENDS halves the stated weight.
	if w := *doc.Rules[1].Weight; w != 0.4 {
		t.Errorf("DEPENDS weight = %v, expected 0.4", w)
	}
	if len(doc.Constraints) != 2 {
		t.Fatalf("expected ATTACKS and SUPPORTS to become constraints, got %d", len(doc.Constraints))
	}
	if doc.Constraints[0].Type != schema.ConstraintAttack || doc.Constraints[1].Type != schema.ConstraintSupport {
		t.Errorf("constraint mapping wrong: %+v", doc.Constraints)
	}
	if doc.Rules[0].ID != "rule_0_aaaabbbb" {
		t.Errorf("rule ID = %q, expected index plus short association ID", doc.Rules[0].ID)
	}
}

func TestSolveContext(t *testing.T) {
	s := newTestStore(t)
	a, b, _ := threeNodeChain(t, s)

	result, cg, err := s.SolveContext(context.Background(), a.ID, 2, map[string]float64{a.ID: 1}, nil)
	if err != nil {
		t.Fatalf("SolveContext: %v", err)
	}
	if len(cg.Nodes) != 3 {
		t.Errorf("context nodes = %d", len(cg.Nodes))
	}
	if !result.Converged {
		t.Error("expected convergence")
	}
	if v := result.Values[VariableName(a.ID)]; v != 1 {
		t.Errorf("evidence value = %v", v)
	}
	if v := result.Values[VariableName(b.ID)]; v <= 0.1 {
		t.Errorf("neighbor value = %v, expected pull above prior", v)
	}

	saved, err := s.GetValues("context_" + shortID(a.ID))
	if err != nil {
		t.Fatalf("GetValues: %v", err)
	}
	if saved[b.ID] != result.Values[VariableName(b.ID)] {
		t.Errorf("persisted value = %v, want %v", saved[b.ID], result.Values[VariableName(b.ID)])
	}
}
