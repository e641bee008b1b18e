//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"execledger/internal/platform/database"
	"execledger/pkg/testutil/containers"
)

func TestPostgresPolicyStore(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) policyStore {
		ctx := context.Background()
		db, err := database.Open(ctx, database.Postgres, pg.DSN, database.Options{MaxOpenConns: 8})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, pg.Truncate(ctx, "policies"))
		return NewSQLPolicyStore(db)
	}})
}
