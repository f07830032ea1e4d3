// internal/types/profile.go
package types

import "time"

// SurveillanceProfile is a read-only, versioned snapshot of one user-defined
// watch rule. Profiles are owned by the profile-management layer; the engine
// only consumes snapshots and never writes them back.
//
// Version increases monotonically on every edit. The engine rejects upserts
// carrying a version lower than the one already applied and treats a repeat
// of the applied version as an idempotent no-op.
type SurveillanceProfile struct {
	ID        ProfileID
	Owner     OwnerID
	Name      string
	Root      ConditionNode
	Enabled   bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
