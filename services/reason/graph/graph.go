// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"sort"

	"github.com/neurosym/neurosym/services/reason/logic"
	"github.com/neurosym/neurosym/services/reason/schema"
)

// Graph is the logic graph: variables, rules, constraints, and their
// runtime state.
//
// Thread Safety:
//
//	NOT safe for concurrent use. See the package documentation for the
//	single-writer contract.
type Graph struct {
	// Name is an optional label carried from the source document.
	Name string

	// variables maps variable name to its definition.
	variables map[string]*Variable

	// variableOrder records insertion order for deterministic iteration.
	variableOrder []string

	// state maps variable name to its mutable runtime state.
	state map[string]*VariableState

	// rules maps rule ID to its definition.
	rules map[string]*Rule

	// ruleOrder records insertion order for deterministic iteration.
	ruleOrder []string

	// constraints maps constraint ID to its definition.
	constraints map[string]*Constraint

	// constraintOrder records insertion order for deterministic iteration.
	constraintOrder []string

	// rulesByOutput maps variable name to the rules that write it.
	// Secondary index kept in sync by AddRule.
	rulesByOutput map[string][]*Rule

	// rulesByInput maps variable name to the rules that read it.
	// Secondary index kept in sync by AddRule.
	rulesByInput map[string][]*Rule

	// constraintsBySource maps variable name to constraints driven by it.
	// Secondary index kept in sync by AddConstraint.
	constraintsBySource map[string][]*Constraint

	// constraintsByTarget maps variable name to constraints adjusting it.
	// Secondary index kept in sync by AddConstraint.
	constraintsByTarget map[string][]*Constraint
}

// New creates an empty logic graph.
func New() *Graph {
	return &Graph{
		variables:           make(map[string]*Variable),
		state:               make(map[string]*VariableState),
		rules:               make(map[string]*Rule),
		constraints:         make(map[string]*Constraint),
		rulesByOutput:       make(map[string][]*Rule),
		rulesByInput:        make(map[string][]*Rule),
		constraintsBySource: make(map[string][]*Constraint),
		constraintsByTarget: make(map[string][]*Constraint),
	}
}

// FromDocument validates doc and builds a fresh graph from it.
//
// Description:
//
//	The document is validated first; if validation fails, the returned
//	report carries the field errors and the error wraps
//	ErrInvalidDocument. Variables load in sorted name order (the schema
//	holds them in a map), rules and constraints in document order.
//	Variables declared locked start locked at their prior.
func FromDocument(doc *schema.Document) (*Graph, schema.Report, error) {
	report := schema.Validate(doc)
	if !report.Valid {
		return nil, report, fmt.Errorf("%w: %d field error(s)", ErrInvalidDocument, len(report.Errors))
	}

	g := New()
	g.Name = doc.Name

	names := make([]string, 0, len(doc.Variables))
	for name := range doc.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := doc.Variables[name]
		v := Variable{
			Name:            name,
			Kind:            spec.Type,
			Prior:           logic.Clamp(spec.PriorOrDefault()),
			LockedByDefault: spec.Locked,
			Description:     spec.Description,
		}
		if err := g.AddVariable(v); err != nil {
			return nil, report, err
		}
	}

	for _, spec := range doc.Rules {
		op, err := logic.ParseOperation(spec.OpOrDefault())
		if err != nil {
			return nil, report, err
		}
		r := Rule{
			ID:          spec.ID,
			Type:        ParseRuleType(spec.Type),
			Inputs:      append([]string(nil), spec.Inputs...),
			Output:      spec.Output,
			Op:          op,
			Weight:      logic.Clamp(spec.WeightOrDefault()),
			Learnable:   spec.IsLearnable(),
			Description: spec.Description,
		}
		if err := g.AddRule(r); err != nil {
			return nil, report, err
		}
	}

	for _, spec := range doc.Constraints {
		c := Constraint{
			ID:          spec.ID,
			Type:        ParseConstraintType(spec.Type),
			Source:      spec.Source,
			Targets:     append([]string(nil), spec.Target...),
			Weight:      logic.Clamp(spec.WeightOrDefault()),
			Description: spec.Description,
		}
		if err := g.AddConstraint(c); err != nil {
			return nil, report, err
		}
	}

	return g, report, nil
}

// Load replaces the graph's contents with doc.
//
// An invalid document is a no-op: the current contents stay untouched
// and the returned report carries the field errors.
func (g *Graph) Load(doc *schema.Document) (schema.Report, error) {
	fresh, report, err := FromDocument(doc)
	if err != nil {
		return report, err
	}
	*g = *fresh
	return report, nil
}

// AddVariable adds a variable and initializes its state to the prior.
// Returns ErrDuplicateVariable if the name already exists.
func (g *Graph) AddVariable(v Variable) error {
	if v.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidVariable)
	}
	if _, exists := g.variables[v.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateVariable, v.Name)
	}
	v.Prior = logic.Clamp(v.Prior)
	g.variables[v.Name] = &v
	g.variableOrder = append(g.variableOrder, v.Name)
	g.state[v.Name] = &VariableState{
		Value:  v.Prior,
		Locked: v.LockedByDefault,
	}
	return nil
}

// AddRule adds a rule and updates the output and input indexes.
//
// Rules may reference variables that do not exist yet; such rules stay
// inactive until the variables appear. A rule whose output is also an
// input is rejected with ErrSelfLoop.
func (g *Graph) AddRule(r Rule) error {
	if _, exists := g.rules[r.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRule, r.ID)
	}
	for _, in := range r.Inputs {
		if in == r.Output {
			return fmt.Errorf("%w: rule %q, variable %q", ErrSelfLoop, r.ID, in)
		}
	}
	r.Weight = logic.Clamp(r.Weight)
	g.rules[r.ID] = &r
	g.ruleOrder = append(g.ruleOrder, r.ID)
	g.rulesByOutput[r.Output] = append(g.rulesByOutput[r.Output], &r)
	for _, in := range r.Inputs {
		g.rulesByInput[in] = append(g.rulesByInput[in], &r)
	}
	return nil
}

// AddConstraint adds a constraint and updates the source and target indexes.
func (g *Graph) AddConstraint(c Constraint) error {
	if _, exists := g.constraints[c.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateConstraint, c.ID)
	}
	c.Weight = logic.Clamp(c.Weight)
	g.constraints[c.ID] = &c
	g.constraintOrder = append(g.constraintOrder, c.ID)
	g.constraintsBySource[c.Source] = append(g.constraintsBySource[c.Source], &c)
	for _, target := range c.Targets {
		g.constraintsByTarget[target] = append(g.constraintsByTarget[target], &c)
	}
	return nil
}

// Variable returns the definition for name.
func (g *Graph) Variable(name string) (*Variable, bool) {
	v, ok := g.variables[name]
	return v, ok
}

// Rule returns the rule with the given ID.
func (g *Graph) Rule(id string) (*Rule, bool) {
	r, ok := g.rules[id]
	return r, ok
}

// Constraint returns the constraint with the given ID.
func (g *Graph) Constraint(id string) (*Constraint, bool) {
	c, ok := g.constraints[id]
	return c, ok
}

// VariableNames returns all variable names in insertion order.
func (g *Graph) VariableNames() []string {
	return append([]string(nil), g.variableOrder...)
}

// Rules returns all rules in insertion order.
func (g *Graph) Rules() []*Rule {
	out := make([]*Rule, 0, len(g.ruleOrder))
	for _, id := range g.ruleOrder {
		out = append(out, g.rules[id])
	}
	return out
}

// Constraints returns all constraints in insertion order.
func (g *Graph) Constraints() []*Constraint {
	out := make([]*Constraint, 0, len(g.constraintOrder))
	for _, id := range g.constraintOrder {
		out = append(out, g.constraints[id])
	}
	return out
}

// RulesWithOutput returns the rules that write the named variable.
func (g *Graph) RulesWithOutput(name string) []*Rule {
	return g.rulesByOutput[name]
}

// RulesWithInput returns the rules that read the named variable.
func (g *Graph) RulesWithInput(name string) []*Rule {
	return g.rulesByInput[name]
}

// ConstraintsWithSource returns the constraints driven by the named variable.
func (g *Graph) ConstraintsWithSource(name string) []*Constraint {
	return g.constraintsBySource[name]
}

// ConstraintsWithTarget returns the constraints adjusting the named variable.
func (g *Graph) ConstraintsWithTarget(name string) []*Constraint {
	return g.constraintsByTarget[name]
}

// GetValue returns the current value of the named variable. The second
// return is false if the variable does not exist.
func (g *Graph) GetValue(name string) (float64, bool) {
	st, ok := g.state[name]
	if !ok {
		return 0, false
	}
	return st.Value, true
}

// SetValue stores the clamped value. Returns false without writing if
// the variable does not exist or is locked.
func (g *Graph) SetValue(name string, value float64) bool {
	st, ok := g.state[name]
	if !ok || st.Locked {
		return false
	}
	st.Value = logic.Clamp(value)
	return true
}

// IsLocked reports whether the named variable is locked. Missing
// variables report false.
func (g *Graph) IsLocked(name string) bool {
	st, ok := g.state[name]
	return ok && st.Locked
}

// LockVariable forces the value and marks the variable as evidence.
// Returns false if the variable does not exist.
func (g *Graph) LockVariable(name string, value float64) bool {
	st, ok := g.state[name]
	if !ok {
		return false
	}
	st.Value = logic.Clamp(value)
	st.Locked = true
	return true
}

// UnlockVariable clears the lock without touching the value. Returns
// false if the variable does not exist.
func (g *Graph) UnlockVariable(name string) bool {
	st, ok := g.state[name]
	if !ok {
		return false
	}
	st.Locked = false
	return true
}

// UnlockAll clears every lock without touching values.
func (g *Graph) UnlockAll() {
	for _, st := range g.state {
		st.Locked = false
	}
}

// ResetToPriors returns every unlocked variable to its prior and zeroes
// its gradient. Locked variables are untouched so evidence survives a
// reset until explicitly unlocked.
func (g *Graph) ResetToPriors() {
	for name, st := range g.state {
		if st.Locked {
			continue
		}
		st.Value = g.variables[name].Prior
		st.Gradient = 0
	}
}

// Values returns a snapshot of all current values keyed by name.
func (g *Graph) Values() map[string]float64 {
	out := make(map[string]float64, len(g.state))
	for name, st := range g.state {
		out[name] = st.Value
	}
	return out
}

// State returns the runtime state for the named variable.
func (g *Graph) State(name string) (VariableState, bool) {
	st, ok := g.state[name]
	if !ok {
		return VariableState{}, false
	}
	return *st, true
}

// SetRuleWeight updates a rule's weight, clamped to [0,1].
func (g *Graph) SetRuleWeight(id string, weight float64) error {
	r, ok := g.rules[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRuleNotFound, id)
	}
	r.Weight = logic.Clamp(weight)
	return nil
}

// Stats summarizes the graph's contents.
func (g *Graph) Stats() Stats {
	s := Stats{
		Variables:   len(g.variables),
		Rules:       len(g.rules),
		Constraints: len(g.constraints),
	}
	for _, st := range g.state {
		if st.Locked {
			s.Locked++
		}
	}
	for _, r := range g.rules {
		if r.Learnable {
			s.Learnable++
		}
	}
	return s
}

// Clear removes all variables, rules, constraints, and state.
func (g *Graph) Clear() {
	*g = *New()
}

// Export produces a schema snapshot of the graph's structure.
//
// Current rule weights are included so trained weights persist; runtime
// values, locks, and gradients are excluded. A reload of the export
// starts from priors.
func (g *Graph) Export() *schema.Document {
	doc := &schema.Document{
		Version:     schema.Version,
		Name:        g.Name,
		Variables:   make(map[string]schema.VariableSpec, len(g.variables)),
		Rules:       make([]schema.RuleSpec, 0, len(g.ruleOrder)),
		Constraints: make([]schema.ConstraintSpec, 0, len(g.constraintOrder)),
	}

	for _, name := range g.variableOrder {
		v := g.variables[name]
		prior := v.Prior
		doc.Variables[name] = schema.VariableSpec{
			Type:        v.Kind,
			Prior:       &prior,
			Locked:      v.LockedByDefault,
			Description: v.Description,
		}
	}

	for _, id := range g.ruleOrder {
		r := g.rules[id]
		weight := r.Weight
		learnable := r.Learnable
		doc.Rules = append(doc.Rules, schema.RuleSpec{
			ID:          r.ID,
			Type:        r.Type.String(),
			Inputs:      append([]string(nil), r.Inputs...),
			Output:      r.Output,
			Op:          r.Op.String(),
			Weight:      &weight,
			Learnable:   &learnable,
			Description: r.Description,
		})
	}

	for _, id := range g.constraintOrder {
		c := g.constraints[id]
		weight := c.Weight
		doc.Constraints = append(doc.Constraints, schema.ConstraintSpec{
			ID:          c.ID,
			Type:        c.Type.String(),
			Source:      c.Source,
			Target:      append(schema.TargetList(nil), c.Targets...),
			Weight:      &weight,
			Description: c.Description,
		})
	}

	return doc
}

// Clone returns a fully independent copy of the graph including its
// runtime state. Mutating the clone never affects the original.
func (g *Graph) Clone() *Graph {
	out := New()
	out.Name = g.Name
	for _, name := range g.variableOrder {
		// AddVariable copies the struct, so definitions do not alias.
		if err := out.AddVariable(*g.variables[name]); err != nil {
			continue
		}
		*out.state[name] = *g.state[name]
	}
	for _, id := range g.ruleOrder {
		r := *g.rules[id]
		r.Inputs = append([]string(nil), r.Inputs...)
		_ = out.AddRule(r)
	}
	for _, id := range g.constraintOrder {
		c := *g.constraints[id]
		c.Targets = append([]string(nil), c.Targets...)
		_ = out.AddConstraint(c)
	}
	return out
}
