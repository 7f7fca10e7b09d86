package aggregate

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
	unionAlias   = "u"
	dailyAlias   = "d"
	monthlyAlias = "m"

	rollupSummaryTable = "summary_table"
	rollupSinceDate    = "since_date"
)

type Result struct {
	Deleted  int64 `json:"deleted"`
	Updated  int64 `json:"updated"`
	Inserted int64 `json:"inserted"`
	// Skipped is set when an additive rollup already ran for the batch.
	Skipped bool `json:"skipped"`
}

type Engine struct {
	cfg  dwh.Config
	mode constants.RollupMode
}

func NewEngine(cfg dwh.Config, mode constants.RollupMode) Engine {
	if mode == "" {
		mode = constants.Additive
	}
	return Engine{cfg: cfg, mode: mode}
}

type statement struct {
	query string
	args  []any
}

func (e Engine) exec(ctx context.Context, tx db.Executor, stmt statement) (int64, error) {
	return db.ExecStatement(ctx, tx, stmt.query, stmt.args...)
}

// RebuildDaily replaces every daily row on or after [since] with a fresh aggregate of its contributions.
func (e Engine) RebuildDaily(ctx context.Context, store db.Store, daily DailySummary, since time.Time, batch batchcontrol.Batch) (Result, error) {
	if err := daily.Validate(); err != nil {
		return Result{}, err
	}

	deleteStatement := e.buildDeleteFromQuery(daily.Table, daily.PeriodColumn, since)
	insertStatement := e.buildDailyInsertQuery(daily, since, batch)

	var result Result
	err := db.WithTx(ctx, store, func(tx db.Executor) error {
		var err error
		if result.Deleted, err = e.exec(ctx, tx, deleteStatement); err != nil {
			return fmt.Errorf("delete phase: %w", err)
		}

		if result.Inserted, err = e.exec(ctx, tx, insertStatement); err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, db.NewPersistenceError("rebuild", e.cfg.WarehouseTable(daily.Table).String(), err)
	}

	slog.Info("Rebuilt daily summary",
		slog.String("summary", daily.Name),
		slog.String("since", since.Format(time.DateOnly)),
		slog.Int64("deleted", result.Deleted),
		slog.Int64("inserted", result.Inserted),
	)
	return result, nil
}

// RollupMonthly folds daily rows on or after [since] into the monthly table, according to the engine's rollup mode.
func (e Engine) RollupMonthly(ctx context.Context, store db.Store, monthly MonthlySummary, since time.Time, batch batchcontrol.Batch) (Result, error) {
	if err := monthly.Validate(); err != nil {
		return Result{}, err
	}

	var result Result
	var err error
	switch e.mode {
	case constants.Additive:
		result, err = e.rollupAdditive(ctx, store, monthly, since, batch)
	case constants.Recompute:
		result, err = e.rollupRecompute(ctx, store, monthly, since, batch)
	default:
		return Result{}, fmt.Errorf("unsupported rollup mode %q", e.mode)
	}

	if err != nil {
		return Result{}, err
	}

	slog.Info("Rolled up monthly summary",
		slog.String("summary", monthly.Name),
		slog.String("mode", string(e.mode)),
		slog.String("since", since.Format(time.DateOnly)),
		slog.Bool("skipped", result.Skipped),
		slog.Int64("updated", result.Updated),
		slog.Int64("inserted", result.Inserted),
		slog.Int64("deleted", result.Deleted),
	)
	return result, nil
}

func (e Engine) rollupAdditive(ctx context.Context, store db.Store, monthly MonthlySummary, since time.Time, batch batchcontrol.Batch) (Result, error) {
	ledgerCheck := e.buildLedgerCheckQuery(monthly, batch)
	updateStatement := e.buildMonthlyAdditiveUpdateQuery(monthly, since, batch)
	insertStatement := e.buildMonthlyInsertQuery(monthly, since, batch, true)
	ledgerEntry := e.buildLedgerInsertQuery(monthly, since, batch)

	var result Result
	err := db.WithTx(ctx, store, func(tx db.Executor) error {
		var applied int64
		if err := tx.QueryRowContext(ctx, ledgerCheck.query, ledgerCheck.args...).Scan(&applied); err != nil {
			return fmt.Errorf("ledger check: %w", err)
		}

		if applied > 0 {
			result.Skipped = true
			return nil
		}

		var err error
		if result.Updated, err = e.exec(ctx, tx, updateStatement); err != nil {
			return fmt.Errorf("update phase: %w", err)
		}

		if result.Inserted, err = e.exec(ctx, tx, insertStatement); err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}

		if _, err = e.exec(ctx, tx, ledgerEntry); err != nil {
			return fmt.Errorf("ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, db.NewPersistenceError("roll up", e.cfg.WarehouseTable(monthly.Table).String(), err)
	}

	if result.Skipped {
		slog.Warn("Monthly rollup already applied for this batch, skipping",
			slog.String("summary", monthly.Name),
			slog.Int64("batchNo", batch.No),
		)
	}

	return result, nil
}

func (e Engine) rollupRecompute(ctx context.Context, store db.Store, monthly MonthlySummary, since time.Time, batch batchcontrol.Batch) (Result, error) {
	monthStart := StartOfMonth(since)
	deleteStatement := e.buildDeleteFromQuery(monthly.Table, monthly.PeriodColumn, monthStart)
	insertStatement := e.buildMonthlyInsertQuery(monthly, monthStart, batch, false)

	var result Result
	err := db.WithTx(ctx, store, func(tx db.Executor) error {
		var err error
		if result.Deleted, err = e.exec(ctx, tx, deleteStatement); err != nil {
			return fmt.Errorf("delete phase: %w", err)
		}

		if result.Inserted, err = e.exec(ctx, tx, insertStatement); err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, db.NewPersistenceError("recompute", e.cfg.WarehouseTable(monthly.Table).String(), err)
	}

	return result, nil
}

func StartOfMonth(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (e Engine) buildDeleteFromQuery(table, periodColumn string, since time.Time) statement {
	params := sql.NewParams(e.cfg.Dialect)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s >= %s",
		e.cfg.WarehouseTable(table).FullyQualifiedName(e.cfg.Dialect),
		e.cfg.Dialect.QuoteIdentifier(periodColumn), params.Add(since),
	)
	return statement{query: query, args: params.Args()}
}

// stampColumns are appended to every summary insert.
var stampColumns = []string{constants.DwCreateTimestamp, constants.DwUpdateTimestamp, constants.EtlBatchNo, constants.EtlBatchDate}

func (e Engine) stampValues(params *sql.Params, batch batchcontrol.Batch) []string {
	now := e.cfg.Timestamp()
	return []string{params.Add(now), params.Add(now), params.Add(batch.No), params.Add(batch.Date)}
}

func (e Engine) buildContributionQuery(daily DailySummary, contribution Contribution, params *sql.Params, since time.Time) string {
	period := e.cfg.Dialect.CastDate(contribution.Period)
	selects := []string{
		fmt.Sprintf("%s AS %s", period, e.cfg.Dialect.QuoteIdentifier(daily.PeriodColumn)),
		fmt.Sprintf("%s AS %s", contribution.Dimension, e.cfg.Dialect.QuoteIdentifier(daily.DimensionColumn)),
	}

	for _, metric := range daily.Metrics {
		expression, ok := contribution.Metrics[metric]
		if !ok {
			expression = "0"
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", expression, e.cfg.Dialect.QuoteIdentifier(metric)))
	}

	var from strings.Builder
	from.WriteString(fmt.Sprintf("%s AS %s", e.cfg.WarehouseTable(contribution.Table).FullyQualifiedName(e.cfg.Dialect), contribution.Alias))
	for _, join := range contribution.Joins {
		joinType := "INNER JOIN"
		if join.Left {
			joinType = "LEFT JOIN"
		}
		from.WriteString(fmt.Sprintf(" %s %s AS %s ON %s", joinType, e.cfg.WarehouseTable(join.Table).FullyQualifiedName(e.cfg.Dialect), join.Alias, join.On))
	}

	where := fmt.Sprintf("%s >= %s", period, params.Add(since))
	if contribution.Where != "" {
		where = fmt.Sprintf("%s AND (%s)", where, contribution.Where)
	}

	// Grouping repeats the expressions since not every engine accepts positional GROUP BY.
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s GROUP BY %s, %s",
		strings.Join(selects, ", "), from.String(), where, period, contribution.Dimension,
	)
}

func (e Engine) buildDailyInsertQuery(daily DailySummary, since time.Time, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)

	columns := append([]string{daily.PeriodColumn, daily.DimensionColumn}, daily.Metrics...)
	values := []string{e.cfg.Column(unionAlias, daily.PeriodColumn), e.cfg.Column(unionAlias, daily.DimensionColumn)}
	for _, metric := range daily.Metrics {
		values = append(values, fmt.Sprintf("MAX(%s)", e.cfg.Column(unionAlias, metric)))
	}

	columns = append(columns, stampColumns...)
	values = append(values, e.stampValues(params, batch)...)

	contributions := make([]string, len(daily.Contributions))
	for i, contribution := range daily.Contributions {
		contributions[i] = e.buildContributionQuery(daily, contribution, params, since)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM (%s) AS %s GROUP BY %s, %s",
		e.cfg.WarehouseTable(daily.Table).FullyQualifiedName(e.cfg.Dialect),
		strings.Join(sql.QuoteIdentifiers(columns, e.cfg.Dialect), ", "),
		strings.Join(values, ", "),
		strings.Join(contributions, " UNION ALL "), unionAlias,
		e.cfg.Column(unionAlias, daily.PeriodColumn), e.cfg.Column(unionAlias, daily.DimensionColumn),
	)

	return statement{query: query, args: params.Args()}
}

// buildDeltaQuery aggregates daily rows per month and dimension. [since] is inlined because the derived table is
// rendered ahead of SET on some engines, which would put positional placeholders out of order.
func (e Engine) buildDeltaQuery(monthly MonthlySummary, since time.Time) string {
	dailyPeriod := e.cfg.Column(dailyAlias, monthly.DailyPeriodColumn)
	month := e.cfg.Dialect.MonthStart(dailyPeriod)
	dimension := e.cfg.Column(dailyAlias, monthly.DimensionColumn)

	selects := []string{
		fmt.Sprintf("%s AS %s", month, e.cfg.Dialect.QuoteIdentifier(monthly.PeriodColumn)),
		fmt.Sprintf("%s AS %s", dimension, e.cfg.Dialect.QuoteIdentifier(monthly.DimensionColumn)),
	}

	for _, sum := range monthly.Sums {
		selects = append(selects, fmt.Sprintf("SUM(%s) AS %s", e.cfg.Column(dailyAlias, sum), e.cfg.Dialect.QuoteIdentifier(sum)))
	}

	for _, activeCount := range monthly.ActiveCounts {
		counted := dailyPeriod
		if activeCount.Indicator != "" {
			counted = fmt.Sprintf("CASE WHEN %s > 0 THEN %s END", e.cfg.Column(dailyAlias, activeCount.Indicator), dailyPeriod)
		}
		selects = append(selects, fmt.Sprintf("COUNT(DISTINCT %s) AS %s", counted, e.cfg.Dialect.QuoteIdentifier(activeCount.Column)))
	}

	return fmt.Sprintf("SELECT %s FROM %s AS %s WHERE %s >= %s GROUP BY %s, %s",
		strings.Join(selects, ", "),
		e.cfg.WarehouseTable(monthly.Daily).FullyQualifiedName(e.cfg.Dialect), dailyAlias,
		dailyPeriod, sql.DateLiteral(since, e.cfg.Dialect),
		month, dimension,
	)
}

func (e Engine) monthlyKeyCondition(monthly MonthlySummary) string {
	return fmt.Sprintf("%s = %s AND %s = %s",
		e.cfg.Column(monthlyAlias, monthly.PeriodColumn), e.cfg.Column(dailyAlias, monthly.PeriodColumn),
		e.cfg.Column(monthlyAlias, monthly.DimensionColumn), e.cfg.Column(dailyAlias, monthly.DimensionColumn),
	)
}

func (e Engine) buildMonthlyAdditiveUpdateQuery(monthly MonthlySummary, since time.Time, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)

	var assignments []sql.Assignment
	for _, column := range monthly.metricColumns() {
		assignments = append(assignments, sql.Assignment{
			Column: column,
			Value:  fmt.Sprintf("%s + %s", e.cfg.Column(monthlyAlias, column), e.cfg.Column(dailyAlias, column)),
		})
	}
	assignments = append(assignments,
		sql.Assignment{Column: constants.DwUpdateTimestamp, Value: params.Add(e.cfg.Timestamp())},
		sql.Assignment{Column: constants.EtlBatchNo, Value: params.Add(batch.No)},
		sql.Assignment{Column: constants.EtlBatchDate, Value: params.Add(batch.Date)},
	)

	query := e.cfg.Dialect.BuildUpdateFromQuery(sql.UpdateFromArgs{
		Target:      e.cfg.WarehouseTable(monthly.Table),
		TargetAlias: monthlyAlias,
		Source:      fmt.Sprintf("(%s)", e.buildDeltaQuery(monthly, since)),
		SourceAlias: dailyAlias,
		Condition:   e.monthlyKeyCondition(monthly),
		Assignments: assignments,
	})

	return statement{query: query, args: params.Args()}
}

// buildMonthlyInsertQuery inserts the delta, restricted to months not in the monthly table yet when [onlyMissing] is set.
func (e Engine) buildMonthlyInsertQuery(monthly MonthlySummary, since time.Time, batch batchcontrol.Batch, onlyMissing bool) statement {
	params := sql.NewParams(e.cfg.Dialect)

	columns := append([]string{monthly.PeriodColumn, monthly.DimensionColumn}, monthly.metricColumns()...)
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = e.cfg.Column(dailyAlias, column)
	}

	columns = append(columns, stampColumns...)
	values = append(values, e.stampValues(params, batch)...)

	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM (%s) AS %s",
		e.cfg.WarehouseTable(monthly.Table).FullyQualifiedName(e.cfg.Dialect),
		strings.Join(sql.QuoteIdentifiers(columns, e.cfg.Dialect), ", "),
		strings.Join(values, ", "),
		e.buildDeltaQuery(monthly, since), dailyAlias,
	)

	if onlyMissing {
		query = fmt.Sprintf("%s LEFT JOIN %s AS %s ON %s WHERE %s IS NULL", query,
			e.cfg.WarehouseTable(monthly.Table).FullyQualifiedName(e.cfg.Dialect), monthlyAlias,
			e.monthlyKeyCondition(monthly),
			e.cfg.Column(monthlyAlias, monthly.PeriodColumn),
		)
	}

	return statement{query: query, args: params.Args()}
}

func (e Engine) buildLedgerCheckQuery(monthly MonthlySummary, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s AND %s = %s",
		e.cfg.MetadataTable(constants.RollupLogTable).FullyQualifiedName(e.cfg.Dialect),
		e.cfg.Dialect.QuoteIdentifier(rollupSummaryTable), params.Add(monthly.Table),
		e.cfg.Dialect.QuoteIdentifier(constants.EtlBatchNo), params.Add(batch.No),
	)
	return statement{query: query, args: params.Args()}
}

func (e Engine) buildLedgerInsertQuery(monthly MonthlySummary, since time.Time, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s, %s, %s, %s)",
		e.cfg.MetadataTable(constants.RollupLogTable).FullyQualifiedName(e.cfg.Dialect),
		strings.Join(sql.QuoteIdentifiers([]string{rollupSummaryTable, constants.EtlBatchNo, rollupSinceDate, constants.DwCreateTimestamp}, e.cfg.Dialect), ", "),
		params.Add(monthly.Table), params.Add(batch.No), params.Add(since), params.Add(e.cfg.Timestamp()),
	)
	return statement{query: query, args: params.Args()}
}
