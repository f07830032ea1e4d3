// internal/filter/operators.go
package filter

import (
	"strconv"
	"strings"
)

/*
 * Operator comparison logic and value canonicalization.
 *
 * Implements the 9 leaf operators with type-aware comparison rules:
 *   - eq/neq: Equality with numeric type mixing (int/int64/float64)
 *   - gt/gte/lt/lte: Numeric when both sides numeric, lexicographic when
 *     both strings, false on any other pairing
 *   - in/not_in: Membership of a scalar attribute in a literal list
 *   - contains_any: Non-empty intersection of a list attribute with a
 *     literal list
 *
 * Missing-attribute handling lives in program.go (evalLeaf); everything
 * here assumes a present value.
 *
 * CanonicalKey is the single definition of value identity shared by the
 * compiler (registering indexable leaves) and the inverted index (expanding
 * event attributes into bucket lookups). Numbers collapse to float64 before
 * formatting so 670, int64(670) and 670.0 share one bucket.
 *
 * Why function-based: 9 operators via switch statement is cleaner than 9
 * interface implementations with minimal behavior variation.
 */

// compare applies op to a present attribute value and the leaf literal.
func compare(op opKind, value any, target any, targets []any) bool {
	switch op {
	case opEq:
		return scalarEqual(value, target)
	case opNeq:
		return !scalarEqual(value, target)
	case opGt:
		c, ok := compareOrdered(value, target)
		return ok && c > 0
	case opGte:
		c, ok := compareOrdered(value, target)
		return ok && c >= 0
	case opLt:
		c, ok := compareOrdered(value, target)
		return ok && c < 0
	case opLte:
		c, ok := compareOrdered(value, target)
		return ok && c <= 0
	case opIn:
		return memberOf(value, targets)
	case opNotIn:
		return !memberOf(value, targets)
	case opContainsAny:
		return intersects(value, targets)
	default:
		return false
	}
}

// scalarEqual performs equality with numeric type mixing. List values never
// equal a scalar literal.
func scalarEqual(a, b any) bool {
	if _, isList := asList(a); isList {
		return false
	}
	if na, oka := toFloat64(a); oka {
		nb, okb := toFloat64(b)
		return okb && na == nb
	}
	return a == b
}

// compareOrdered performs three-way comparison: numeric when both sides are
// numbers, lexicographic when both are strings. ok is false for any other
// pairing, which makes every ordering operator evaluate false.
func compareOrdered(a, b any) (int, bool) {
	if na, oka := toFloat64(a); oka {
		nb, okb := toFloat64(b)
		if !okb {
			return 0, false
		}
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	if oka && okb {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// memberOf checks a scalar attribute against a literal list. A list-valued
// attribute is never a member (use contains_any for list fields).
func memberOf(value any, set []any) bool {
	if _, isList := asList(value); isList {
		return false
	}
	for _, elem := range set {
		if scalarEqual(value, elem) {
			return true
		}
	}
	return false
}

// intersects checks that a list attribute shares at least one element with
// the literal list. A scalar attribute never intersects.
func intersects(value any, set []any) bool {
	elems, ok := asList(value)
	if !ok {
		return false
	}
	for _, e := range elems {
		if memberOf(e, set) {
			return true
		}
	}
	return false
}

// toFloat64 converts numeric types produced by JSON decoding and by typed
// ingestion code to float64. Returns false for non-numeric values.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsList normalizes list-valued attributes to []any. Typed slices from
// ingestion code are widened; anything else is not a list.
func AsList(v any) ([]any, bool) {
	return asList(v)
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// CanonicalKey renders a scalar as its index bucket key. Numbers collapse to
// float64 first so integer and float spellings of the same value share a
// bucket. Lists and unsupported types have no canonical key.
func CanonicalKey(v any) (string, bool) {
	if n, ok := toFloat64(v); ok {
		return "n:" + strconv.FormatFloat(n, 'g', -1, 64), true
	}
	switch s := v.(type) {
	case string:
		return "s:" + s, true
	case bool:
		if s {
			return "b:1", true
		}
		return "b:0", true
	}
	return "", false
}
