// internal/core/db/profiles.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Profile snapshot loading.
 *
 * The engine bootstraps its profile set from the management database at
 * startup; thereafter lifecycle notifications keep it current. Condition
 * trees are stored as the tagged JSON encoding in the expression column.
 *
 * A profile whose stored expression no longer parses is skipped and
 * reported rather than failing the whole load: one corrupt row must not
 * keep the watcher from starting.
 */

// profileRow mirrors the profiles table.
type profileRow struct {
	ProfileID  string `db:"profile_id"`
	OwnerID    string `db:"owner_id"`
	Name       string `db:"name"`
	Enabled    bool   `db:"enabled"`
	Version    int64  `db:"version"`
	Expression string `db:"expression"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

// LoadEnabledProfiles reads every enabled profile. skipped reports rows
// whose expression failed to parse, keyed by profile id.
func LoadEnabledProfiles(ctx context.Context, q *Queries) (profiles []types.SurveillanceProfile, skipped map[string]error, err error) {
	var rows []profileRow
	if err := q.Select(ctx, "list-enabled-profiles", &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	skipped = make(map[string]error)
	for _, r := range rows {
		p, err := rowToProfile(r)
		if err != nil {
			skipped[r.ProfileID] = err
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, skipped, nil
}

func rowToProfile(r profileRow) (types.SurveillanceProfile, error) {
	id, err := types.ParseProfileID(r.ProfileID)
	if err != nil {
		return types.SurveillanceProfile{}, fmt.Errorf("invalid profile id: %w", err)
	}

	var root types.ConditionNode
	if err := json.Unmarshal([]byte(r.Expression), &root); err != nil {
		return types.SurveillanceProfile{}, fmt.Errorf("invalid expression: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return types.SurveillanceProfile{}, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, r.UpdatedAt)
	if err != nil {
		return types.SurveillanceProfile{}, fmt.Errorf("invalid updated_at: %w", err)
	}

	return types.SurveillanceProfile{
		ID:        id,
		Owner:     types.OwnerID(r.OwnerID),
		Name:      r.Name,
		Root:      root,
		Enabled:   r.Enabled,
		Version:   r.Version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
