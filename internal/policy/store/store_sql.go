package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"execledger/internal/platform/database"
	"execledger/internal/policy/models"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/sentinel"
	txcontext "execledger/pkg/platform/tx"
)

// SQLPolicyStore persists policies in postgres or sqlite.
type SQLPolicyStore struct {
	db *database.DB
}

func NewSQLPolicyStore(db *database.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLPolicyStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append assigns the next id to p inside a transaction holding the table's
// writer lock. p.ID is only updated once the transaction succeeds.
func (s *SQLPolicyStore) Append(ctx context.Context, p *models.Policy) error {
	var assigned id.PolicyID
	err := txcontext.Run(ctx, s.db.DB, func(ctx context.Context, tx *sql.Tx) error {
		if lock := s.db.Dialect.LockTable("policies"); lock != "" {
			if _, err := tx.ExecContext(ctx, lock); err != nil {
				return fmt.Errorf("lock policies: %w", err)
			}
		}
		var next int64
		if err := s.q(ctx).QueryRowContext(ctx, "SELECT COALESCE(MAX(id) + 1, 0) FROM policies").Scan(&next); err != nil {
			return fmt.Errorf("next policy id: %w", err)
		}
		_, err := s.q(ctx).ExecContext(ctx, s.db.Dialect.Rebind(
			"INSERT INTO policies (id, merkle_root, initiator, created_at) VALUES (?, ?, ?, ?)"),
			next, p.MerkleRoot.Bytes(), string(p.Initiator), p.Timestamp.Unix(),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert policy: %w", err)
		}
		assigned = id.PolicyID(next)
		return nil
	})
	if err != nil {
		return err
	}
	p.ID = assigned
	return nil
}

func (s *SQLPolicyStore) FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	// Ids past the signed range cannot be stored.
	if uint64(policyID) > 1<<63-1 {
		return nil, sentinel.ErrNotFound
	}
	row := s.q(ctx).QueryRowContext(ctx, s.db.Dialect.Rebind(
		"SELECT id, merkle_root, initiator, created_at FROM policies WHERE id = ?"), int64(policyID))
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return p, nil
}

func (s *SQLPolicyStore) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.q(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM policies").Scan(&n); err != nil {
		return 0, fmt.Errorf("count policies: %w", err)
	}
	return uint64(n), nil
}

func (s *SQLPolicyStore) List(ctx context.Context, offset, limit uint64) ([]*models.Policy, error) {
	if limit == 0 || offset > 1<<63-1 {
		return []*models.Policy{}, nil
	}
	if limit > 1<<63-1 {
		limit = 1<<63 - 1
	}
	rows, err := s.q(ctx).QueryContext(ctx, s.db.Dialect.Rebind(
		"SELECT id, merkle_root, initiator, created_at FROM policies WHERE id >= ? ORDER BY id LIMIT ?"),
		int64(offset), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	out := []*models.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*models.Policy, error) {
	var (
		rawID     int64
		root      []byte
		initiator string
		createdAt int64
	)
	if err := row.Scan(&rawID, &root, &initiator, &createdAt); err != nil {
		return nil, err
	}
	merkleRoot, err := id.MerkleRootFromBytes(root)
	if err != nil {
		return nil, err
	}
	return &models.Policy{
		ID:         id.PolicyID(rawID),
		MerkleRoot: merkleRoot,
		Initiator:  id.Principal(initiator),
		Timestamp:  time.Unix(createdAt, 0).UTC(),
	}, nil
}
