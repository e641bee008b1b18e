package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"execledger/internal/diagnostic/models"
	"execledger/internal/platform/database"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/sentinel"
	txcontext "execledger/pkg/platform/tx"
)

const maxSQLIndex = 1<<63 - 1

// sqlPolicyKey maps the full unsigned policy id range onto BIGINT by
// reinterpreting the bits; ids at or above 2^63 are stored negative.
func sqlPolicyKey(policyID id.PolicyID) int64 {
	return int64(uint64(policyID))
}

// SQLLogStore persists diagnostic entries in postgres or sqlite.
type SQLLogStore struct {
	db *database.DB
}

func NewSQLLogStore(db *database.DB) *SQLLogStore {
	return &SQLLogStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLLogStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append assigns e the next index for its policy id. Postgres takes an
// advisory lock on the policy id so appends to other policies proceed.
func (s *SQLLogStore) Append(ctx context.Context, e *models.Entry) error {
	var assigned id.LogIndex
	err := txcontext.Run(ctx, s.db.DB, func(ctx context.Context, tx *sql.Tx) error {
		if lock := s.db.Dialect.LockKey(); lock != "" {
			if _, err := tx.ExecContext(ctx, lock, "diagnostic_logs:"+e.PolicyID.String()); err != nil {
				return fmt.Errorf("lock diagnostic log: %w", err)
			}
		}
		var next int64
		err := s.q(ctx).QueryRowContext(ctx, s.db.Dialect.Rebind(
			"SELECT COALESCE(MAX(log_index) + 1, 0) FROM diagnostic_logs WHERE policy_id = ?"),
			sqlPolicyKey(e.PolicyID)).Scan(&next)
		if err != nil {
			return fmt.Errorf("next log index: %w", err)
		}
		_, err = s.q(ctx).ExecContext(ctx, s.db.Dialect.Rebind(
			"INSERT INTO diagnostic_logs (policy_id, log_index, message, created_at) VALUES (?, ?, ?, ?)"),
			sqlPolicyKey(e.PolicyID), next, e.Message, e.CreatedAt.Unix(),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert diagnostic log: %w", err)
		}
		assigned = id.LogIndex(next)
		return nil
	})
	if err != nil {
		return err
	}
	e.LogIndex = assigned
	return nil
}

func (s *SQLLogStore) Find(ctx context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error) {
	if uint64(index) > maxSQLIndex {
		return nil, sentinel.ErrNotFound
	}
	var (
		rawPolicy int64
		message   string
		createdAt int64
	)
	err := s.q(ctx).QueryRowContext(ctx, s.db.Dialect.Rebind(
		"SELECT policy_id, message, created_at FROM diagnostic_logs WHERE policy_id = ? AND log_index = ?"),
		sqlPolicyKey(policyID), int64(index)).Scan(&rawPolicy, &message, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find diagnostic log: %w", err)
	}
	return &models.Entry{
		PolicyID:  id.PolicyID(uint64(rawPolicy)),
		LogIndex:  index,
		Message:   message,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

func (s *SQLLogStore) Count(ctx context.Context, policyID id.PolicyID) (uint64, error) {
	var n int64
	err := s.q(ctx).QueryRowContext(ctx, s.db.Dialect.Rebind(
		"SELECT COUNT(*) FROM diagnostic_logs WHERE policy_id = ?"), sqlPolicyKey(policyID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count diagnostic logs: %w", err)
	}
	return uint64(n), nil
}
