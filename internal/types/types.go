// Package types provides domain models shared across killwatch components.
//
// Zero-dependency design: condition.go, events.go and errors.go use only the
// standard library so the condition model can be embedded anywhere. ID
// utilities in ids.go import uuid but are isolated for selective inclusion.
package types

// ProfileID represents a UUIDv7 surveillance profile identifier.
// String alias enables type safety while maintaining JSON string serialization.
type ProfileID string

// OwnerID references the entity that owns a profile. Ownership is managed by
// the profile-management layer; the engine treats it as opaque.
type OwnerID string

// Fingerprint is a stable hash of an event's canonical attribute map, used as
// the match-cache key and carried on match results for correlation.
type Fingerprint string

// Resource limits enforced at profile validation time to bound compilation
// and evaluation cost.
const (
	// MaxTreeDepth bounds condition tree nesting to keep the compiled
	// matcher's evaluation stack shallow and reject pathological trees.
	MaxTreeDepth = 64

	// MaxListValues limits in/not_in/contains_any value lists to prevent
	// quadratic membership checks and oversized index fan-out.
	MaxListValues = 64
)
