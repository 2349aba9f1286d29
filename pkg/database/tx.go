package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nouraellm/drugovery/pkg/apperrors"
)

// Querier is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
// Repositories run every statement through a Querier so that the same code works
// inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs a function inside a database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Transactor = (*DB)(nil)

type contextKey string

// txKey is the context key for the active transaction.
const txKey contextKey = "tx"

// TxFromContext returns the transaction started by InTx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// Querier returns the transaction bound to ctx, or the pool when there is none.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db.Pool
}

// InTx runs fn inside a transaction. Repository calls made with the context
// passed to fn join that transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Nested calls reuse the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return apperrors.Transient(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Transient(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// PostgreSQL error codes the repositories translate.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ClassifyError maps driver errors to application errors: lock conflicts
// become ErrStaleVersion, connection-level failures become transient.
// Anything else is returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailure, deadlockDetected:
			return fmt.Errorf("%w: %s", apperrors.ErrStaleVersion, pgErr.Message)
		}
		return err
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return apperrors.Transient(err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return apperrors.Transient(err)
	}
	return err
}
