package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/artie-labs/warehouse/lib/jitter"
	"github.com/artie-labs/warehouse/lib/retry"
)

const (
	maxAttempts     = 3
	sleepIntervalMs = 500
)

// Executor is the subset of [*sql.DB] and [*sql.Tx] the engines run statements against.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store interface {
	Executor
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	// Conn pins a single session, used for session scoped advisory locks.
	Conn(ctx context.Context) (*sql.Conn, error)
	Close() error
}

type storeWrapper struct {
	*sql.DB
}

func NewStore(db *sql.DB) Store {
	return &storeWrapper{DB: db}
}

// Open creates a connection pool and pings it, retrying only on transient network errors.
func Open(ctx context.Context, driverName, dsn string) (Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to start a SQL client for driver %q: %w", driverName, err)
	}

	return OpenDB(ctx, driverName, db)
}

// OpenDB is [Open] for drivers that hand out a [*sql.DB] through a connector.
func OpenDB(ctx context.Context, driverName string, db *sql.DB) (Store, error) {
	retryCfg := retry.NewRetryConfig(retry.NewRetryConfigArgs{
		JitterBaseMs:   sleepIntervalMs,
		JitterMaxMs:    jitter.DefaultMaxMs,
		MaxAttempts:    maxAttempts,
		IsRetryableErr: IsRetryableError,
	})

	err := retryCfg.WithRetries(ctx, func(attempt int, _ error) error {
		if attempt > 0 {
			slog.Warn("Retrying the connection check", slog.String("driverName", driverName), slog.Int("attempt", attempt))
		}
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to validate the DB connection for driver %q: %w", driverName, err)
	}

	return NewStore(db), nil
}
