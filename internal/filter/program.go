// internal/filter/program.go
package filter

import (
	"context"

	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Flat matcher program and interpreter.
 *
 * A compiled matcher is a preorder instruction slice, not a tree of
 * closures: each composite instruction records the index just past its
 * subtree (end), which doubles as the short-circuit jump target. The
 * interpreter walks the slice left to right, skipping a subtree by setting
 * the program counter to end. Recursion depth is bounded by MaxTreeDepth,
 * enforced at validation time.
 *
 * Cancellation is cooperative: the interpreter polls the context every
 * deadlineCheckStride leaf evaluations, so a pathological matcher is
 * abandoned by its per-profile deadline instead of stalling the event.
 *
 * Missing-attribute semantics (leaf level): neq and not_in evaluate true on
 * a missing attribute, every other operator evaluates false.
 */

type opKind uint8

const (
	opEq opKind = iota
	opNeq
	opGt
	opGte
	opLt
	opLte
	opIn
	opNotIn
	opContainsAny
)

type instrOp uint8

const (
	instrLeaf instrOp = iota
	instrAnd
	instrOr
	instrNot
)

// leafPred holds one atomic predicate with literals canonicalized at
// compile time (numbers widened to float64).
type leafPred struct {
	field  string
	cmp    opKind
	value  any
	values []any
}

type instr struct {
	op   instrOp
	end  int32 // index just past this instruction's subtree
	leaf *leafPred
}

// deadlineCheckStride is how many leaf evaluations pass between context
// polls inside the interpreter loop.
const deadlineCheckStride = 64

// Matcher is an immutable compiled condition tree. Safe for concurrent use;
// replaced wholesale on profile version bumps, never mutated.
type Matcher struct {
	prog []instr
}

// Eval runs the matcher against an event. Returns ErrEvaluationTimeout
// (wrapping nothing) when ctx expires mid-evaluation.
func (m *Matcher) Eval(ctx context.Context, ev types.NormalizedEvent) (bool, error) {
	s := evalState{prog: m.prog, ev: ev, ctx: ctx}
	v, _, err := s.eval(0)
	return v, err
}

type evalState struct {
	prog  []instr
	ev    types.NormalizedEvent
	ctx   context.Context
	steps int
}

// eval evaluates the subtree rooted at pc and returns its value plus the
// index just past the subtree.
func (s *evalState) eval(pc int) (bool, int, error) {
	in := s.prog[pc]

	switch in.op {
	case instrLeaf:
		s.steps++
		if s.steps%deadlineCheckStride == 0 && s.ctx.Err() != nil {
			return false, 0, types.ErrEvaluationTimeout
		}
		return evalLeaf(in.leaf, s.ev), pc + 1, nil

	case instrNot:
		v, next, err := s.eval(pc + 1)
		return !v, next, err

	case instrAnd:
		// Empty And is the identity element: true.
		res := true
		next := pc + 1
		for next < int(in.end) {
			v, n, err := s.eval(next)
			if err != nil {
				return false, 0, err
			}
			if !v {
				res = false
				break
			}
			next = n
		}
		return res, int(in.end), nil

	case instrOr:
		// Empty Or is the identity element: false.
		res := false
		next := pc + 1
		for next < int(in.end) {
			v, n, err := s.eval(next)
			if err != nil {
				return false, 0, err
			}
			if v {
				res = true
				break
			}
			next = n
		}
		return res, int(in.end), nil
	}

	return false, int(in.end), nil
}

// evalLeaf applies missing-attribute semantics, then delegates to compare.
func evalLeaf(l *leafPred, ev types.NormalizedEvent) bool {
	v, ok := ev.Get(l.field)
	if !ok {
		return l.cmp == opNeq || l.cmp == opNotIn
	}
	return compare(l.cmp, v, l.value, l.values)
}
