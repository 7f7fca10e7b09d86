package lock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/artie-labs/warehouse/lib/db"
	sqllib "github.com/artie-labs/warehouse/lib/sql"
)

// DatabaseLocker takes a session scoped advisory lock on the destination, pinned to a dedicated connection.
type DatabaseLocker struct {
	store         db.Store
	tryLockQuery  string
	unlockQuery   string
	dialectString string
}

func NewDatabaseLocker(store db.Store, dialect sqllib.Dialect) (DatabaseLocker, error) {
	tryLockQuery, err := dialect.BuildTryLockQuery()
	if err != nil {
		return DatabaseLocker{}, fmt.Errorf("%s: %w", dialect.Kind(), err)
	}

	unlockQuery, err := dialect.BuildUnlockQuery()
	if err != nil {
		return DatabaseLocker{}, fmt.Errorf("%s: %w", dialect.Kind(), err)
	}

	return DatabaseLocker{
		store:         store,
		tryLockQuery:  tryLockQuery,
		unlockQuery:   unlockQuery,
		dialectString: string(dialect.Kind()),
	}, nil
}

func (d DatabaseLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	conn, err := d.store.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pin a connection for the lock: %w", err)
	}

	var acquired int64
	if err = conn.QueryRowContext(ctx, d.tryLockQuery, key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}

	if acquired != 1 {
		_ = conn.Close()
		return nil, fmt.Errorf("%q: %w", key, ErrNotAcquired)
	}

	slog.Debug("Acquired advisory lock", slog.String("key", key), slog.String("dialect", d.dialectString))
	return func(ctx context.Context) error {
		return d.release(ctx, conn, key)
	}, nil
}

func (d DatabaseLocker) release(ctx context.Context, conn *sql.Conn, key string) error {
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, d.unlockQuery, key); err != nil {
		return fmt.Errorf("failed to release lock %q: %w", key, err)
	}
	return nil
}
