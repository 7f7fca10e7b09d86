package batchcontrol

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	sqllib "github.com/artie-labs/warehouse/lib/sql"
)

// LogEntry is one row of the batch log.
type LogEntry struct {
	Batch     Batch      `json:"batch"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Lifecycle records the start and outcome of every batch run.
type Lifecycle struct {
	store   db.Store
	dialect sqllib.Dialect
	tableID sqllib.TableIdentifier
	now     func() time.Time
}

func NewLifecycle(store db.Store, dialect sqllib.Dialect, metadataSchema string, now func() time.Time) Lifecycle {
	if now == nil {
		now = time.Now
	}

	return Lifecycle{
		store:   store,
		dialect: dialect,
		tableID: sqllib.NewTableIdentifier(metadataSchema, constants.BatchControlLogTable),
		now:     now,
	}
}

func (l Lifecycle) columns(columns ...string) string {
	return strings.Join(sqllib.QuoteIdentifiers(columns, l.dialect), ", ")
}

// Begin appends a running entry for [batch].
func (l Lifecycle) Begin(ctx context.Context, batch Batch) error {
	params := sqllib.NewParams(l.dialect)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s, %s, %s, %s)",
		l.tableID.FullyQualifiedName(l.dialect),
		l.columns(constants.EtlBatchNo, constants.EtlBatchDate, constants.BatchStatus, constants.BatchStartTime),
		params.Add(batch.No), params.Add(batch.Date), params.Add(string(Running)), params.Add(l.now().UTC()),
	)

	if _, err := db.ExecStatement(ctx, l.store, query, params.Args()...); err != nil {
		return db.NewPersistenceError("begin batch", l.tableID.String(), err)
	}

	slog.Info("Batch started", slog.Int64("batchNo", batch.No), slog.String("batchDate", batch.Date.Format(time.DateOnly)))
	return nil
}

// Finish moves the running entry for [batch] to [status]. A missing running entry is logged and ignored.
func (l Lifecycle) Finish(ctx context.Context, batch Batch, status Status) error {
	if status != Passed && status != Failed {
		return fmt.Errorf("batch can only finish as passed or failed, got %q", status)
	}

	params := sqllib.NewParams(l.dialect)
	query := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s AND %s = %s",
		l.tableID.FullyQualifiedName(l.dialect),
		l.dialect.QuoteIdentifier(constants.BatchStatus), params.Add(string(status)),
		l.dialect.QuoteIdentifier(constants.BatchEndTime), params.Add(l.now().UTC()),
		l.dialect.QuoteIdentifier(constants.EtlBatchNo), params.Add(batch.No),
		l.dialect.QuoteIdentifier(constants.BatchStatus), params.Add(string(Running)),
	)

	rows, err := db.ExecStatement(ctx, l.store, query, params.Args()...)
	if err != nil {
		return db.NewPersistenceError("finish batch", l.tableID.String(), err)
	}

	if rows == 0 {
		slog.Warn("No running batch log entry to finish",
			slog.Int64("batchNo", batch.No),
			slog.String("status", status.String()),
		)
		return nil
	}

	slog.Info("Batch finished", slog.Int64("batchNo", batch.No), slog.String("status", status.String()))
	return nil
}

// IsRunning reports whether [batch] already has a running entry.
func (l Lifecycle) IsRunning(ctx context.Context, batch Batch) (bool, error) {
	params := sqllib.NewParams(l.dialect)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s AND %s = %s",
		l.tableID.FullyQualifiedName(l.dialect),
		l.dialect.QuoteIdentifier(constants.EtlBatchNo), params.Add(batch.No),
		l.dialect.QuoteIdentifier(constants.BatchStatus), params.Add(string(Running)),
	)

	var count int64
	if err := l.store.QueryRowContext(ctx, query, params.Args()...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query %q: %w", l.tableID.String(), err)
	}

	return count > 0, nil
}

// Latest returns the most recently started batch log entry.
func (l Lifecycle) Latest(ctx context.Context) (LogEntry, error) {
	table := l.tableID.FullyQualifiedName(l.dialect)
	startTime := l.dialect.QuoteIdentifier(constants.BatchStartTime)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = (SELECT MAX(%s) FROM %s)",
		l.columns(constants.EtlBatchNo, constants.EtlBatchDate, constants.BatchStatus, constants.BatchStartTime, constants.BatchEndTime),
		table, startTime, startTime, table,
	)

	var entry LogEntry
	var status string
	var endTime sql.NullTime
	err := l.store.QueryRowContext(ctx, query).Scan(&entry.Batch.No, &entry.Batch.Date, &status, &entry.StartTime, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LogEntry{}, &NoBatchFoundError{Table: l.tableID.String()}
		}
		return LogEntry{}, fmt.Errorf("failed to query %q: %w", l.tableID.String(), err)
	}

	entry.Batch.Date = truncateToDate(entry.Batch.Date)
	entry.Status = Status(status)
	if endTime.Valid {
		entry.EndTime = &endTime.Time
	}

	return entry, nil
}
