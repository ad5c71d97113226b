package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations shared by *pgxpool.Pool and
// pgx.Tx, letting repository code run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

// ContextWithTx returns a context carrying the given transaction.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext extracts the transaction injected by InSerializableTx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

const defaultTxRetries = 3

// InSerializableTx runs fn inside a SERIALIZABLE transaction, retrying a
// bounded number of times when Postgres aborts the transaction with a
// serialization failure or deadlock. The transaction is made available to
// repositories through the context.
func (p *Postgres) InSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool not configured")
	}

	retries := p.txMaxRetries
	if retries <= 0 {
		retries = defaultTxRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}

		if err := fn(ContextWithTx(ctx, tx)); err != nil {
			_ = tx.Rollback(ctx)
			if retryableTxError(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if retryableTxError(err) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// retryableTxError reports whether err is a serialization failure (40001)
// or deadlock (40P01), both of which are safe to retry from the top.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally matching a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
