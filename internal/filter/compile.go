// internal/filter/compile.go
package filter

import (
	"fmt"

	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Condition tree compilation.
 *
 * Compiles a validated tree into three artifacts:
 *   1. Matcher: the flat instruction program (see program.go)
 *   2. IndexableLeaves: one (field, canonical value) pair per element of
 *      every eq/in/contains_any leaf reachable without passing through a
 *      Not, the subset the inverted index can register
 *   3. Prunable: whether candidate selection via those index entries alone
 *      can never under-select this profile
 *
 * Prunability is a structural analysis: a subtree is prunable when every
 * way it can evaluate true forces at least one of its indexable leaves
 * true. eq/in/contains_any leaves are prunable, all other leaves and
 * anything under a Not are not, And needs one prunable child, Or needs all
 * children prunable (and at least one child). A non-prunable profile joins
 * the always-candidate fallback set; its indexable leaves are still
 * registered for nothing is lost by the extra entries.
 *
 * Callers are expected to Validate first; Compile re-checks only what it
 * must to stay panic-free on unexpected input.
 */

// IndexableLeaf is one (field, canonical value) pair the inverted index can
// register for candidate pruning.
type IndexableLeaf struct {
	Field string
	Key   string
}

// Compiled is the derived artifact for one profile version. Immutable: old
// versions are replaced wholesale on version bump, never patched.
type Compiled struct {
	Matcher         *Matcher
	IndexableLeaves []IndexableLeaf
	Prunable        bool
}

// Compile turns a validated condition tree into its executable and
// indexable forms.
func Compile(root types.ConditionNode) (*Compiled, error) {
	c := &compiler{}
	prunable, err := c.emit(root, false)
	if err != nil {
		return nil, err
	}
	return &Compiled{
		Matcher:         &Matcher{prog: c.prog},
		IndexableLeaves: c.leaves,
		Prunable:        prunable && len(c.leaves) > 0,
	}, nil
}

type compiler struct {
	prog   []instr
	leaves []IndexableLeaf
}

// emit appends the subtree rooted at n to the program, collecting indexable
// leaves along the way. underNot disables leaf registration and prunability
// for the whole subtree. Returns whether the subtree is prunable.
func (c *compiler) emit(n types.ConditionNode, underNot bool) (bool, error) {
	switch n.Kind {
	case types.KindAnd, types.KindOr:
		op := instrAnd
		if n.Kind == types.KindOr {
			op = instrOr
		}
		at := len(c.prog)
		c.prog = append(c.prog, instr{op: op})

		anyPrunable := false
		allPrunable := len(n.Children) > 0
		for _, child := range n.Children {
			p, err := c.emit(child, underNot)
			if err != nil {
				return false, err
			}
			anyPrunable = anyPrunable || p
			allPrunable = allPrunable && p
		}
		c.prog[at].end = int32(len(c.prog))

		if n.Kind == types.KindAnd {
			return anyPrunable, nil
		}
		return allPrunable, nil

	case types.KindNot:
		if len(n.Children) != 1 {
			return false, types.ErrInvalidNotArity
		}
		at := len(c.prog)
		c.prog = append(c.prog, instr{op: instrNot})
		if _, err := c.emit(n.Children[0], true); err != nil {
			return false, err
		}
		c.prog[at].end = int32(len(c.prog))
		return false, nil

	case types.KindLeaf:
		return c.emitLeaf(n, underNot)

	default:
		return false, fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

func (c *compiler) emitLeaf(n types.ConditionNode, underNot bool) (bool, error) {
	cmp, ok := leafOp(n.Op)
	if !ok {
		return false, fmt.Errorf("%w: %q", types.ErrUnknownOperator, string(n.Op))
	}

	leaf := &leafPred{field: n.Field, cmp: cmp}
	if n.Op.IsListOperator() {
		raw, ok := asList(n.Value)
		if !ok {
			return false, fmt.Errorf("%w: %s on %q", types.ErrValueTypeMismatch, n.Op, n.Field)
		}
		leaf.values = make([]any, len(raw))
		for i, v := range raw {
			leaf.values[i] = canonicalScalar(v)
		}
	} else {
		leaf.value = canonicalScalar(n.Value)
	}
	c.prog = append(c.prog, instr{op: instrLeaf, end: int32(len(c.prog) + 1), leaf: leaf})

	indexable := !underNot && (n.Op == types.OpEq || n.Op == types.OpIn || n.Op == types.OpContainsAny)
	if !indexable {
		return false, nil
	}

	if n.Op == types.OpEq {
		if key, ok := CanonicalKey(leaf.value); ok {
			c.leaves = append(c.leaves, IndexableLeaf{Field: n.Field, Key: key})
			return true, nil
		}
		return false, nil
	}
	// in / contains_any: one entry per literal element.
	registered := 0
	for _, v := range leaf.values {
		if key, ok := CanonicalKey(v); ok {
			c.leaves = append(c.leaves, IndexableLeaf{Field: n.Field, Key: key})
			registered++
		}
	}
	// Pruning by this leaf is only sound if every element got a bucket.
	return registered == len(leaf.values), nil
}

// canonicalScalar widens numeric literals to float64 so compile-time values
// match the form JSON decoding gives event attributes.
func canonicalScalar(v any) any {
	if n, ok := toFloat64(v); ok {
		return n
	}
	return v
}

func leafOp(op types.Operator) (opKind, bool) {
	switch op {
	case types.OpEq:
		return opEq, true
	case types.OpNeq:
		return opNeq, true
	case types.OpGt:
		return opGt, true
	case types.OpGte:
		return opGte, true
	case types.OpLt:
		return opLt, true
	case types.OpLte:
		return opLte, true
	case types.OpIn:
		return opIn, true
	case types.OpNotIn:
		return opNotIn, true
	case types.OpContainsAny:
		return opContainsAny, true
	}
	return 0, false
}
