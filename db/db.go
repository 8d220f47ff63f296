package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"

	"procure/internal/lifecycle"
)

// Storage wraps the Postgres connection for all procurement entities.
// Constructed once at process start and passed down; components never reach
// for a global handle.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Connect opens the Postgres pool, retrying the initial ping with
// fibonacci backoff so the server survives a database that comes up late.
func Connect(ctx context.Context, connString string) (*sqlx.DB, error) {
	dbConn, err := sqlx.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	backoff := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := dbConn.PingContext(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return dbConn, nil
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// readWithRetry retries a read on transient connection failures. Business
// errors pass through untouched; the retry policy lives here at the
// persistence boundary, never inside the decision functions.
func (s *Storage) readWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var errNoRows = sql.ErrNoRows

// mapNotFound converts sql.ErrNoRows into the typed taxonomy.
func mapNotFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.NewNotFound(entity, id)
	}
	return err
}

// mapConflict converts Postgres unique violations into the typed taxonomy.
func mapConflict(err error, format string, args ...any) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return lifecycle.NewConflict(format, args...)
	}
	return err
}

// mapRestricted converts Postgres foreign key violations into the typed
// taxonomy, for deletes blocked by dependent rows.
func mapRestricted(err error, format string, args ...any) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return lifecycle.NewConflict(format, args...)
	}
	return err
}
