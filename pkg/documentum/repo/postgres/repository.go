package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/documentum/pkg/documentum"
)

// DefaultLockTimeout bounds how long a statement waits for a row lock.
const DefaultLockTimeout = 5 * time.Second

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements documentum.Repository using PostgreSQL
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// Option configures the repository
type Option func(*Repository)

// WithLockTimeout sets the per-transaction lock_timeout. Zero leaves the
// server default.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) {
		r.lockTimeout = d
	}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunInTx runs fn in a READ COMMITTED transaction. Row locks taken by
// LockProjet, LockMap and GetRubriqueForUpdate are held until fn returns.
func (r *Repository) RunInTx(ctx context.Context, fn func(tx documentum.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return handlePostgresError("begin", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if r.lockTimeout > 0 {
		ms := strconv.FormatInt(r.lockTimeout.Milliseconds(), 10) + "ms"
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			return handlePostgresError("begin", err)
		}
	}

	if err := fn(&pgTx{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return handlePostgresError("commit", err)
	}
	return nil
}

// pgTx implements documentum.Tx over one database transaction.
type pgTx struct {
	db DBTX
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03": // lock_not_available
			return &documentum.ConflictError{Op: operation, Err: documentum.ErrLockTimeout, Detail: pgErr.Message}
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return &documentum.ConflictError{Op: operation, Detail: pgErr.Message}
		case "23505": // unique_violation
			if pgErr.ConstraintName == "version_projet_one_active" {
				return &documentum.ConflictError{Op: operation, Err: documentum.ErrActiveVersionSet, Detail: pgErr.Detail}
			}
			return &documentum.ConflictError{Op: operation, Err: documentum.ErrAlreadyExists, Detail: pgErr.ConstraintName}
		case "23503": // foreign_key_violation
			return &documentum.ValidationError{Op: operation, Field: pgErr.ConstraintName, Err: documentum.ErrInvalidValue, Detail: "referenced record not found"}
		case "23502": // not_null_violation
			return &documentum.ValidationError{Op: operation, Field: pgErr.ColumnName, Err: documentum.ErrRequired}
		case "23514": // check_violation
			return &documentum.ValidationError{Op: operation, Field: pgErr.ConstraintName, Err: documentum.ErrInvalidValue}
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// getError maps a single-row read error, turning a missing row into a
// NotFoundError.
func getError(operation, resource string, id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &documentum.NotFoundError{Resource: resource, ID: id}
	}
	return handlePostgresError(operation, err)
}

// execOne runs an UPDATE/DELETE that must touch exactly one row.
func (t *pgTx) execOne(ctx context.Context, operation, resource string, id uuid.UUID, query string, args ...any) error {
	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return handlePostgresError(operation, err)
	}
	if tag.RowsAffected() == 0 {
		return &documentum.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, operation string, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, handlePostgresError(operation, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError(operation, err)
	}
	return out, nil
}
