// internal/filter/validate.go
package filter

import (
	"fmt"

	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Condition tree validation.
 *
 * Runs synchronously at profile create/update time so that malformed trees
 * never reach the runtime path. Checks structure (Not arity, depth cap),
 * the attribute vocabulary, operator/value compatibility, and list-value
 * limits. Cycles are impossible by construction (value semantics), so no
 * runtime cycle check exists.
 *
 * Validation errors wrap the sentinel from internal/types with position
 * context so the profile-management caller can report a usable message.
 */

// Validate checks a condition tree against the structural invariants and the
// attribute vocabulary. Returns nil when the tree is safe to compile.
func Validate(root types.ConditionNode) error {
	if root.Kind == types.KindLeaf && root.Field == "" && root.Op == "" && root.Value == nil {
		return types.ErrEmptyTree
	}
	return validateNode(root, 1)
}

func validateNode(n types.ConditionNode, depth int) error {
	if depth > types.MaxTreeDepth {
		return types.ErrTreeTooDeep
	}

	switch n.Kind {
	case types.KindAnd, types.KindOr:
		for i, c := range n.Children {
			if err := validateNode(c, depth+1); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
		return nil
	case types.KindNot:
		if len(n.Children) != 1 {
			return types.ErrInvalidNotArity
		}
		return validateNode(n.Children[0], depth+1)
	case types.KindLeaf:
		return validateLeaf(n)
	default:
		return fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

func validateLeaf(n types.ConditionNode) error {
	if n.Field == "" {
		return types.ErrEmptyField
	}
	kind, ok := types.FieldKindOf(n.Field)
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownField, n.Field)
	}
	if !n.Op.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownOperator, string(n.Op))
	}

	if n.Op.IsListOperator() {
		return validateListValue(n, kind)
	}
	return validateScalarValue(n, kind)
}

// validateScalarValue enforces scalar literals for eq/neq and the ordering
// operators, and that the literal's type matches the field's vocabulary kind.
// Ordering operators additionally reject booleans and list-kind fields.
func validateScalarValue(n types.ConditionNode, kind types.FieldKind) error {
	if _, isList := asList(n.Value); isList {
		return fmt.Errorf("%w: %s on %q requires a scalar value", types.ErrValueTypeMismatch, n.Op, n.Field)
	}

	ordered := n.Op == types.OpGt || n.Op == types.OpGte || n.Op == types.OpLt || n.Op == types.OpLte
	if ordered && kind.IsList() {
		return fmt.Errorf("%w: %s not applicable to list field %q", types.ErrValueTypeMismatch, n.Op, n.Field)
	}

	if err := checkScalarKind(n.Value, kind.Elem()); err != nil {
		return fmt.Errorf("%w: field %q", err, n.Field)
	}
	if ordered {
		if _, isBool := n.Value.(bool); isBool {
			return fmt.Errorf("%w: %s not applicable to boolean field %q", types.ErrValueTypeMismatch, n.Op, n.Field)
		}
	}
	return nil
}

// validateListValue enforces non-empty, bounded, homogeneous value lists and
// the field-shape requirements of the list operators: in/not_in compare a
// scalar attribute against the list, contains_any intersects a list attribute.
func validateListValue(n types.ConditionNode, kind types.FieldKind) error {
	values, ok := asList(n.Value)
	if !ok {
		return fmt.Errorf("%w: %s on %q requires a list value", types.ErrValueTypeMismatch, n.Op, n.Field)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: %s on %q", types.ErrEmptyListValue, n.Op, n.Field)
	}
	if len(values) > types.MaxListValues {
		return fmt.Errorf("%w: %s on %q has %d values", types.ErrTooManyListValues, n.Op, n.Field, len(values))
	}

	if n.Op == types.OpContainsAny {
		if !kind.IsList() {
			return fmt.Errorf("%w: contains_any requires a list field, %q is scalar", types.ErrValueTypeMismatch, n.Field)
		}
	} else if kind.IsList() {
		return fmt.Errorf("%w: %s requires a scalar field, %q is a list", types.ErrValueTypeMismatch, n.Op, n.Field)
	}

	for i, v := range values {
		if err := checkScalarKind(v, kind.Elem()); err != nil {
			return fmt.Errorf("%w: field %q value %d", err, n.Field, i)
		}
	}
	return nil
}

// checkScalarKind verifies a literal scalar against a vocabulary scalar kind.
func checkScalarKind(v any, kind types.FieldKind) error {
	switch kind {
	case types.FieldNumber:
		if _, ok := toFloat64(v); !ok {
			return fmt.Errorf("%w: expected number, got %T", types.ErrValueTypeMismatch, v)
		}
	case types.FieldString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: expected string, got %T", types.ErrValueTypeMismatch, v)
		}
	case types.FieldBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: expected boolean, got %T", types.ErrValueTypeMismatch, v)
		}
	default:
		return fmt.Errorf("%w: unexpected field kind %d", types.ErrValueTypeMismatch, kind)
	}
	return nil
}
