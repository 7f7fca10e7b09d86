package db

import (
	"context"
	"fmt"
	"log/slog"
)

// WithTx runs [fn] inside a transaction, committing if it returns nil and rolling back otherwise.
func WithTx(ctx context.Context, store Store, fn func(tx Executor) error) error {
	tx, err := store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start tx: %w", err)
	}

	var committed bool
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				slog.Warn("Unable to rollback", slog.Any("err", rollbackErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	committed = true
	return nil
}

// ExecStatement logs and runs a single statement, returning the number of affected rows.
func ExecStatement(ctx context.Context, exec Executor, query string, args ...any) (int64, error) {
	slog.Debug("Executing...", slog.String("query", query), slog.Int("args", len(args)))
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
