// internal/types/condition.go
package types

import (
	"encoding/json"
	"fmt"
)

/*
 * Condition tree model.
 *
 * A profile's filter is a recursive boolean expression: And/Or combinators
 * over child nodes, Not over a single child, and Leaf predicates comparing
 * one normalized event attribute against a literal. Trees are built
 * bottom-up with value semantics, so cycles are impossible by construction.
 *
 * Child order never affects evaluation semantics, only display and the
 * short-circuit order, so it is preserved as given for determinism.
 *
 * JSON encoding (used by the profile store and CLI tooling):
 *   {"and": [ ... ]}
 *   {"or":  [ ... ]}
 *   {"not": { ... }}
 *   {"field": "ship_type_id", "op": "eq", "value": 670}
 */

// Operator identifies a leaf predicate comparison.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContainsAny Operator = "contains_any"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContainsAny:
		return true
	}
	return false
}

// IsListOperator reports whether op requires a list-valued literal.
func (op Operator) IsListOperator() bool {
	return op == OpIn || op == OpNotIn || op == OpContainsAny
}

// NodeKind discriminates the ConditionNode variant.
type NodeKind uint8

const (
	KindLeaf NodeKind = iota
	KindAnd
	KindOr
	KindNot
)

// ConditionNode is one node of a filter tree. Immutable by convention:
// once handed to the engine a tree is never mutated, only replaced.
type ConditionNode struct {
	Kind     NodeKind
	Children []ConditionNode // And/Or: zero or more; Not: exactly one
	Field    string          // Leaf only
	Op       Operator        // Leaf only
	Value    any             // Leaf only: scalar, or []any for list operators
}

// And builds a conjunction node. An empty And evaluates to true.
func And(children ...ConditionNode) ConditionNode {
	return ConditionNode{Kind: KindAnd, Children: children}
}

// Or builds a disjunction node. An empty Or evaluates to false.
func Or(children ...ConditionNode) ConditionNode {
	return ConditionNode{Kind: KindOr, Children: children}
}

// Not builds a negation node over a single child.
func Not(child ConditionNode) ConditionNode {
	return ConditionNode{Kind: KindNot, Children: []ConditionNode{child}}
}

// Leaf builds an atomic predicate against one event attribute.
func Leaf(field string, op Operator, value any) ConditionNode {
	return ConditionNode{Kind: KindLeaf, Field: field, Op: op, Value: value}
}

// MarshalJSON implements json.Marshaler using the tagged object encoding.
func (n ConditionNode) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindAnd:
		return json.Marshal(map[string][]ConditionNode{"and": n.childrenOrEmpty()})
	case KindOr:
		return json.Marshal(map[string][]ConditionNode{"or": n.childrenOrEmpty()})
	case KindNot:
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("not node must have exactly one child, has %d", len(n.Children))
		}
		return json.Marshal(map[string]ConditionNode{"not": n.Children[0]})
	case KindLeaf:
		return json.Marshal(struct {
			Field string   `json:"field"`
			Op    Operator `json:"op"`
			Value any      `json:"value"`
		}{n.Field, n.Op, n.Value})
	default:
		return nil, fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Numbers decode to float64 and
// list literals to []any, matching the normalized comparison forms used by
// the compiler.
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if c, ok := raw["and"]; ok {
		var children []ConditionNode
		if err := json.Unmarshal(c, &children); err != nil {
			return fmt.Errorf("and children: %w", err)
		}
		*n = ConditionNode{Kind: KindAnd, Children: children}
		return nil
	}
	if c, ok := raw["or"]; ok {
		var children []ConditionNode
		if err := json.Unmarshal(c, &children); err != nil {
			return fmt.Errorf("or children: %w", err)
		}
		*n = ConditionNode{Kind: KindOr, Children: children}
		return nil
	}
	if c, ok := raw["not"]; ok {
		var child ConditionNode
		if err := json.Unmarshal(c, &child); err != nil {
			return fmt.Errorf("not child: %w", err)
		}
		*n = ConditionNode{Kind: KindNot, Children: []ConditionNode{child}}
		return nil
	}
	if _, ok := raw["field"]; ok {
		var leaf struct {
			Field string   `json:"field"`
			Op    Operator `json:"op"`
			Value any      `json:"value"`
		}
		if err := json.Unmarshal(data, &leaf); err != nil {
			return fmt.Errorf("leaf: %w", err)
		}
		*n = ConditionNode{Kind: KindLeaf, Field: leaf.Field, Op: leaf.Op, Value: leaf.Value}
		return nil
	}

	return fmt.Errorf("condition node must contain one of: and, or, not, field")
}

// Depth returns the height of the tree rooted at n, counting n itself.
func (n ConditionNode) Depth() int {
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

func (n ConditionNode) childrenOrEmpty() []ConditionNode {
	if n.Children == nil {
		return []ConditionNode{}
	}
	return n.Children
}
