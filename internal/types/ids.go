package types

import (
	"github.com/google/uuid"
)

// NewProfileID generates a UUIDv7 profile identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewProfileID() ProfileID {
	return ProfileID(uuid.Must(uuid.NewV7()).String())
}

// ParseProfileID validates and converts a string to ProfileID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseProfileID(s string) (ProfileID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ProfileID(s), nil
}
