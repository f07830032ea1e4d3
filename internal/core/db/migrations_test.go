// internal/core/db/migrations_test.go
package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A semicolon inside a comment line must not cut a statement in half.
func TestApplyMigration_SemicolonInComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.db")
	conn, err := Open("sqlite://" + path)
	require.NoError(t, err)
	defer conn.Close()

	m := migration{
		ID: "001_split.sql",
		SQL: `-- header comment with a semicolon; right here
CREATE TABLE split_check (
    id TEXT PRIMARY KEY, -- trailing comments stay inside the statement
    note TEXT NOT NULL
);

-- another comment; another semicolon
CREATE INDEX idx_split_note ON split_check (note);
`,
	}

	tx, err := conn.Beginx()
	require.NoError(t, err)
	require.NoError(t, applyMigration(tx, m))
	require.NoError(t, tx.Commit())

	var count int
	require.NoError(t, conn.Get(&count, "SELECT COUNT(*) FROM split_check"))
	assert.Equal(t, 0, count)
}
