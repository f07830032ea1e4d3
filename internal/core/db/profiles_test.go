// internal/core/db/profiles_test.go
package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixlabs/killwatch/internal/types"
)

const testProfileID = "0195a2f0-4b7a-7c3e-9d2a-1f6b8c0d4e5a"

func validRow() profileRow {
	return profileRow{
		ProfileID:  testProfileID,
		OwnerID:    "owner-1",
		Name:       "capsule-watch",
		Enabled:    true,
		Version:    3,
		Expression: `{"field":"ship_type_id","op":"eq","value":670}`,
		CreatedAt:  "2026-01-15T09:30:00Z",
		UpdatedAt:  "2026-02-01T18:45:00Z",
	}
}

func TestRowToProfile(t *testing.T) {
	p, err := rowToProfile(validRow())
	require.NoError(t, err)

	assert.Equal(t, types.ProfileID(testProfileID), p.ID)
	assert.Equal(t, types.OwnerID("owner-1"), p.Owner)
	assert.Equal(t, "capsule-watch", p.Name)
	assert.True(t, p.Enabled)
	assert.Equal(t, int64(3), p.Version)
	assert.Equal(t, types.KindLeaf, p.Root.Kind)
	assert.Equal(t, types.FieldShipTypeID, p.Root.Field)
	assert.Equal(t, types.OpEq, p.Root.Op)
	assert.Equal(t, float64(670), p.Root.Value)
	assert.Equal(t, 2026, p.CreatedAt.Year())
}

func TestRowToProfile_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*profileRow)
	}{
		{"malformed id", func(r *profileRow) { r.ProfileID = "not-a-uuid" }},
		{"malformed expression", func(r *profileRow) { r.Expression = `{"field":` }},
		{"unknown expression shape", func(r *profileRow) { r.Expression = `{"xor":[]}` }},
		{"bad created_at", func(r *profileRow) { r.CreatedAt = "yesterday" }},
		{"bad updated_at", func(r *profileRow) { r.UpdatedAt = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRow()
			tt.mutate(&r)
			_, err := rowToProfile(r)
			assert.Error(t, err)
		})
	}
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://localhost/profiles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database scheme")
}

// Full round trip against a file-backed SQLite database: migrate, insert,
// load, and confirm corrupt rows are skipped rather than fatal.
func TestLoadEnabledProfiles_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	conn, err := Open("sqlite://" + path)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, MigrateUp(conn))

	insert := `INSERT INTO profiles
		(profile_id, owner_id, name, enabled, version, expression, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	rows := []profileRow{
		{
			ProfileID:  testProfileID,
			OwnerID:    "owner-1",
			Name:       "capsule-watch",
			Enabled:    true,
			Version:    1,
			Expression: `{"field":"ship_type_id","op":"eq","value":670}`,
			CreatedAt:  "2026-01-15T09:30:00Z",
			UpdatedAt:  "2026-01-15T09:30:00Z",
		},
		{
			ProfileID:  "0195a2f0-4b7a-7c3e-9d2a-1f6b8c0d4e5b",
			OwnerID:    "owner-2",
			Name:       "disabled-watch",
			Enabled:    false,
			Version:    1,
			Expression: `{"field":"solo","op":"eq","value":true}`,
			CreatedAt:  "2026-01-15T09:30:00Z",
			UpdatedAt:  "2026-01-15T09:30:00Z",
		},
		{
			ProfileID:  "0195a2f0-4b7a-7c3e-9d2a-1f6b8c0d4e5c",
			OwnerID:    "owner-3",
			Name:       "corrupt-watch",
			Enabled:    true,
			Version:    1,
			Expression: `{{{`,
			CreatedAt:  "2026-01-15T09:30:00Z",
			UpdatedAt:  "2026-01-15T09:30:00Z",
		},
	}
	for _, r := range rows {
		_, err := conn.Exec(insert,
			r.ProfileID, r.OwnerID, r.Name, r.Enabled, r.Version,
			r.Expression, r.CreatedAt, r.UpdatedAt)
		require.NoError(t, err)
	}

	q, err := LoadQueries(conn)
	require.NoError(t, err)

	profiles, skipped, err := LoadEnabledProfiles(context.Background(), q)
	require.NoError(t, err)

	// The disabled profile is filtered by the query, the corrupt one skipped.
	require.Len(t, profiles, 1)
	assert.Equal(t, types.ProfileID(testProfileID), profiles[0].ID)
	assert.Len(t, skipped, 1)
	assert.Contains(t, skipped, "0195a2f0-4b7a-7c3e-9d2a-1f6b8c0d4e5c")

	var count int
	require.NoError(t, q.Get(context.Background(), "count-profiles", &count))
	assert.Equal(t, 3, count)
}

// Migrations are idempotent and detect tampering via checksums.
func TestMigrateUp_Repeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repeat.db")
	conn, err := Open(fmt.Sprintf("sqlite://%s", path))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, MigrateUp(conn))
	require.NoError(t, MigrateUp(conn))

	statuses, err := MigrateStatus(conn)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %s not applied", s.ID)
	}
}
