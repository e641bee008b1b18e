// Package database opens the SQL backends shared by the policy and
// diagnostic stores and applies their schema.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Dialect selects driver-specific SQL.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB couples a connection pool with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to dsn using dialect and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, opts Options) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s dsn is required", dialect)
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	switch dialect {
	case Postgres:
		sqlDB, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	case SQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		sqlDB, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection serializes writers, which is what assigns sequence
		// numbers without gaps.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db := &DB{DB: sqlDB, Dialect: dialect}
	if err := db.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the idempotent schema for the dialect.
func (db *DB) Migrate(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema/" + string(db.Dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("read %s schema: %w", db.Dialect, err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply %s schema: %w", db.Dialect, err)
	}
	return nil
}

// Rebind rewrites ? placeholders into $n for postgres.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LockTable returns a statement taking a writer lock on table for the rest of
// the transaction. Readers are not blocked. SQLite needs none because its
// single connection already serializes writers.
func (d Dialect) LockTable(table string) string {
	if d == Postgres {
		return "LOCK TABLE " + table + " IN SHARE ROW EXCLUSIVE MODE"
	}
	return ""
}

// LockKey returns a statement taking a transaction-scoped lock on an
// arbitrary key, or "" when the dialect needs none.
func (d Dialect) LockKey() string {
	if d == Postgres {
		return "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))"
	}
	return ""
}

// IsUniqueViolation reports whether err is a primary key or unique conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
