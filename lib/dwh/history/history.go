package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/dwh"
	"github.com/artie-labs/warehouse/lib/sql"
)

const (
	historyAlias = "h"
	currentAlias = "c"
)

type OrderingViolationError struct {
	Table     string
	BatchDate time.Time
	Rows      int64
}

func (e *OrderingViolationError) Error() string {
	return fmt.Sprintf("%q already has %d row(s) effective after %s, refusing to historize an older batch",
		e.Table, e.Rows, e.BatchDate.Format(time.DateOnly))
}

type Result struct {
	// Amended counts rows opened earlier in the same batch date whose values changed again.
	Amended int64 `json:"amended"`
	Closed  int64 `json:"closed"`
	Opened  int64 `json:"opened"`
}

type Engine struct {
	cfg dwh.Config
}

func NewEngine(cfg dwh.Config) Engine {
	return Engine{cfg: cfg}
}

type statement struct {
	query string
	args  []any
}

// Historize closes the active version of every entity whose tracked values changed and opens a new version for
// every entity without an active one. Running it twice for the same batch is a no-op the second time.
func (e Engine) Historize(ctx context.Context, store db.Store, tracking Tracking, batch batchcontrol.Batch) (Result, error) {
	if err := tracking.Validate(); err != nil {
		return Result{}, err
	}

	historyTable := e.cfg.WarehouseTable(tracking.History)
	amend := e.buildAmendQuery(tracking, batch)
	closeQuery := e.buildCloseQuery(tracking, batch)
	open := e.buildOpenQuery(tracking, batch)

	var result Result
	var violation *OrderingViolationError
	err := db.WithTx(ctx, store, func(tx db.Executor) error {
		// The guard runs in the same transaction as the writes so both see the same rows.
		if !tracking.AllowOutOfOrder {
			guard := e.buildOrderingGuardQuery(tracking, batch)
			var rows int64
			if err := tx.QueryRowContext(ctx, guard.query, guard.args...).Scan(&rows); err != nil {
				return fmt.Errorf("failed to check the ordering of %q: %w", historyTable.String(), err)
			}

			if rows > 0 {
				violation = &OrderingViolationError{Table: historyTable.String(), BatchDate: batch.Date, Rows: rows}
				return violation
			}
		}

		var err error
		if result.Amended, err = db.ExecStatement(ctx, tx, amend.query, amend.args...); err != nil {
			return fmt.Errorf("amend phase: %w", err)
		}

		if result.Closed, err = db.ExecStatement(ctx, tx, closeQuery.query, closeQuery.args...); err != nil {
			return fmt.Errorf("close phase: %w", err)
		}

		if result.Opened, err = db.ExecStatement(ctx, tx, open.query, open.args...); err != nil {
			return fmt.Errorf("open phase: %w", err)
		}

		return nil
	})
	if violation != nil {
		return Result{}, violation
	} else if err != nil {
		return Result{}, db.NewPersistenceError("historize", historyTable.String(), err)
	}

	slog.Info("Historized entity",
		slog.String("history", tracking.Name),
		slog.Int64("batchNo", batch.No),
		slog.Int64("amended", result.Amended),
		slog.Int64("closed", result.Closed),
		slog.Int64("opened", result.Opened),
	)
	return result, nil
}

func (e Engine) buildOrderingGuardQuery(tracking Tracking, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > %s",
		e.cfg.WarehouseTable(tracking.History).FullyQualifiedName(e.cfg.Dialect),
		e.cfg.Dialect.QuoteIdentifier(constants.EffectiveFromDate), params.Add(batch.Date),
	)
	return statement{query: query, args: params.Args()}
}

// changed is true when any tracked attribute differs, two NULLs being equal.
func (e Engine) changed(tracking Tracking) string {
	parts := make([]string, len(tracking.Attributes))
	for i, attribute := range tracking.Attributes {
		parts[i] = e.cfg.Dialect.IsDistinctFrom(e.cfg.Column(historyAlias, attribute), e.cfg.Column(currentAlias, attribute))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (e Engine) activeMatch(tracking Tracking) string {
	return fmt.Sprintf("%s = %s AND %s = 1",
		e.cfg.Column(historyAlias, tracking.SurrogateKey), e.cfg.Column(currentAlias, tracking.SurrogateKey),
		e.cfg.Column(historyAlias, constants.ActiveRecordInd),
	)
}

func (e Engine) updateFrom(tracking Tracking, condition string, assignments []sql.Assignment) string {
	return e.cfg.Dialect.BuildUpdateFromQuery(sql.UpdateFromArgs{
		Target:      e.cfg.WarehouseTable(tracking.History),
		TargetAlias: historyAlias,
		Source:      e.cfg.WarehouseTable(tracking.Current).FullyQualifiedName(e.cfg.Dialect),
		SourceAlias: currentAlias,
		Condition:   condition,
		Assignments: assignments,
	})
}

// buildAmendQuery overwrites a version that was opened on the batch date itself, closing it would leave an empty range.
func (e Engine) buildAmendQuery(tracking Tracking, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)

	var assignments []sql.Assignment
	for _, attribute := range tracking.Attributes {
		assignments = append(assignments, sql.Assignment{Column: attribute, Value: e.cfg.Column(currentAlias, attribute)})
	}
	assignments = append(assignments,
		sql.Assignment{Column: constants.DwUpdateTimestamp, Value: params.Add(e.cfg.Timestamp())},
		sql.Assignment{Column: constants.UpdateEtlBatchNo, Value: params.Add(batch.No)},
		sql.Assignment{Column: constants.UpdateEtlBatchDate, Value: params.Add(batch.Date)},
	)

	condition := fmt.Sprintf("%s AND %s = %s AND %s",
		e.activeMatch(tracking),
		e.cfg.Column(historyAlias, constants.EffectiveFromDate), params.Add(batch.Date),
		e.changed(tracking),
	)

	return statement{query: e.updateFrom(tracking, condition, assignments), args: params.Args()}
}

func (e Engine) buildCloseQuery(tracking Tracking, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)
	assignments := []sql.Assignment{
		{Column: constants.EffectiveToDate, Value: params.Add(batch.PreviousDay())},
		{Column: constants.ActiveRecordInd, Value: "0"},
		{Column: constants.DwUpdateTimestamp, Value: params.Add(e.cfg.Timestamp())},
		{Column: constants.UpdateEtlBatchNo, Value: params.Add(batch.No)},
		{Column: constants.UpdateEtlBatchDate, Value: params.Add(batch.Date)},
	}

	condition := fmt.Sprintf("%s AND %s < %s AND %s",
		e.activeMatch(tracking),
		e.cfg.Column(historyAlias, constants.EffectiveFromDate), params.Add(batch.Date),
		e.changed(tracking),
	)

	return statement{query: e.updateFrom(tracking, condition, assignments), args: params.Args()}
}

// buildOpenQuery inserts a version for every current row without an active one, which covers new entities and the ones just closed.
func (e Engine) buildOpenQuery(tracking Tracking, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)

	columns := append([]string{tracking.SurrogateKey}, tracking.Attributes...)
	var values []string
	for _, column := range columns {
		values = append(values, e.cfg.Column(currentAlias, column))
	}

	now := e.cfg.Timestamp()
	columns = append(columns,
		constants.EffectiveFromDate, constants.ActiveRecordInd,
		constants.DwCreateTimestamp, constants.DwUpdateTimestamp,
		constants.CreateEtlBatchNo, constants.CreateEtlBatchDate,
	)
	values = append(values,
		params.Add(batch.Date), "1",
		params.Add(now), params.Add(now),
		params.Add(batch.No), params.Add(batch.Date),
	)

	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s AS %s LEFT JOIN %s AS %s ON %s WHERE %s IS NULL",
		e.cfg.WarehouseTable(tracking.History).FullyQualifiedName(e.cfg.Dialect),
		strings.Join(sql.QuoteIdentifiers(columns, e.cfg.Dialect), ", "),
		strings.Join(values, ", "),
		e.cfg.WarehouseTable(tracking.Current).FullyQualifiedName(e.cfg.Dialect), currentAlias,
		e.cfg.WarehouseTable(tracking.History).FullyQualifiedName(e.cfg.Dialect), historyAlias,
		e.activeMatch(tracking),
		e.cfg.Column(historyAlias, tracking.SurrogateKey),
	)

	return statement{query: query, args: params.Args()}
}
