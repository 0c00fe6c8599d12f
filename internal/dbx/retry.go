package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes PostgreSQL uses for transactions that lost a race and may
// succeed when replayed.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// IsRetryable reports whether err is a PostgreSQL serialization failure or
// deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// RetryObserver is notified with the number of retries a transaction needed.
type RetryObserver func(retries int)

// WithTxRetry runs fn through WithTx and replays the whole transaction when
// it fails with a retryable error, at most attempts times in total.
// The observer, if non-nil, receives the number of replays performed.
func WithTxRetry(ctx context.Context, db *sql.DB, opts *sql.TxOptions, attempts int, observe RetryObserver, fn func(ctx context.Context, tx DBTX) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	retries := 0
	for i := 0; i < attempts; i++ {
		err = WithTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if i < attempts-1 {
			retries++
		}
	}

	if observe != nil {
		observe(retries)
	}
	return err
}
