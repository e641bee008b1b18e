package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", Postgres.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestLockStatements(t *testing.T) {
	assert.Equal(t, "LOCK TABLE policies IN SHARE ROW EXCLUSIVE MODE", Postgres.LockTable("policies"))
	assert.Empty(t, SQLite.LockTable("policies"))
	assert.NotEmpty(t, Postgres.LockKey())
	assert.Empty(t, SQLite.LockKey())
}

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, SQLite, filepath.Join(t.TempDir(), "ledger.db"), Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "INSERT INTO policies (id, merkle_root, initiator, created_at) VALUES (0, zeroblob(32), 'x', 0)")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO policies (id, merkle_root, initiator, created_at) VALUES (0, zeroblob(32), 'y', 0)")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	require.NoError(t, db.Migrate(ctx), "schema is idempotent")
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "dsn", Options{})
	assert.Error(t, err)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Postgres, " ", Options{})
	assert.Error(t, err)
}
