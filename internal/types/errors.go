package types

import "errors"

// Sentinel errors for killwatch operations.
var (
	// ErrEmptyTree indicates a profile with no condition nodes.
	ErrEmptyTree = errors.New("condition tree is empty")

	// ErrTreeTooDeep indicates nesting beyond MaxTreeDepth.
	ErrTreeTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrEmptyField indicates a leaf with an empty field name.
	ErrEmptyField = errors.New("leaf field name is empty")

	// ErrUnknownField indicates a leaf field outside the attribute vocabulary.
	ErrUnknownField = errors.New("leaf field not in attribute vocabulary")

	// ErrUnknownOperator indicates an unrecognized leaf operator.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrInvalidNotArity indicates a Not node without exactly one child.
	ErrInvalidNotArity = errors.New("not node must have exactly one child")

	// ErrValueTypeMismatch indicates a literal incompatible with the
	// operator or the field's vocabulary kind.
	ErrValueTypeMismatch = errors.New("leaf value type incompatible with operator or field")

	// ErrEmptyListValue indicates an in/not_in/contains_any leaf with an
	// empty value list.
	ErrEmptyListValue = errors.New("list operator requires a non-empty value list")

	// ErrTooManyListValues indicates a value list beyond MaxListValues.
	ErrTooManyListValues = errors.New("list operator has too many values")

	// ErrEmptyProfileID indicates an upsert without a profile identifier.
	ErrEmptyProfileID = errors.New("profile id is empty")

	// ErrInvalidProfileVersion indicates a non-positive profile version.
	ErrInvalidProfileVersion = errors.New("profile version must be positive")

	// ErrStaleProfileVersion indicates an upsert carrying a version lower
	// than the one already applied.
	ErrStaleProfileVersion = errors.New("profile version is older than the applied version")

	// ErrProfileNotFound indicates a removal for an unknown profile.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrEvaluationTimeout indicates a matcher abandoned its per-profile
	// evaluation deadline.
	ErrEvaluationTimeout = errors.New("matcher evaluation timed out")
)
