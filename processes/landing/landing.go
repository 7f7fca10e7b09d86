package landing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artie-labs/warehouse/lib/batch"
	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/csvwriter"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/objectstore"
	"github.com/artie-labs/warehouse/lib/sql"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/base"
)

const (
	maxRowsPerInsert = 500
	// SQL Server caps a statement at 2100 parameters.
	maxParamsPerInsert = 2000
)

// Stage replaces the contents of every staging table with the file landed for the batch.
type Stage struct {
	store   db.Store
	dialect sql.Dialect
	schema  string
	tables  []config.SourceTable
	landing objectstore.Store
	prefix  string
	iamRole string
	region  string
	metrics base.Client
}

type Args struct {
	Store         db.Store
	Dialect       sql.Dialect
	StagingSchema string
	Tables        []config.SourceTable
	Landing       objectstore.Store
	Prefix        string
	// IAMRole and Region are only used by engines that COPY straight from object storage.
	IAMRole string
	Region  string
	Metrics base.Client
}

func NewStage(args Args) Stage {
	metricsClient := args.Metrics
	if metricsClient == nil {
		metricsClient = metrics.NullMetricsProvider{}
	}

	return Stage{
		store:   args.Store,
		dialect: args.Dialect,
		schema:  args.StagingSchema,
		tables:  args.Tables,
		landing: args.Landing,
		prefix:  args.Prefix,
		iamRole: args.IAMRole,
		region:  args.Region,
		metrics: metricsClient,
	}
}

func (Stage) Name() string {
	return string(constants.LandingStage)
}

func (s Stage) Run(ctx context.Context, batch batchcontrol.Batch) error {
	for _, table := range s.tables {
		tableID := sql.NewTableIdentifier(s.schema, table.StagingTable)
		key := objectstore.Key(s.prefix, table.Name, batch.Date)

		var rows int64
		var err error
		if s.dialect.Kind() == constants.Redshift {
			rows, err = s.copyTable(ctx, tableID, table, key)
		} else {
			rows, err = s.insertTable(ctx, tableID, key)
		}

		if err != nil {
			return db.NewPersistenceError("load", tableID.String(), err)
		}

		s.metrics.Count("landing.rows", rows, map[string]string{"table": table.StagingTable})
		slog.Info("Loaded staging table", slog.String("table", tableID.String()), slog.Int64("rows", rows))
	}

	return nil
}

func (s Stage) copyTable(ctx context.Context, tableID sql.TableIdentifier, table config.SourceTable, key string) (int64, error) {
	copyQuery, err := s.dialect.BuildCopyQuery(sql.CopyArgs{
		Table:   tableID,
		Columns: table.Columns,
		URI:     s.landing.URI(key),
		IAMRole: s.iamRole,
		Region:  s.region,
	})
	if err != nil {
		return 0, err
	}

	var rows int64
	err = db.WithTx(ctx, s.store, func(tx db.Executor) error {
		if _, err := db.ExecStatement(ctx, tx, s.dialect.BuildClearTableQuery(tableID)); err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}

		copied, err := db.ExecStatement(ctx, tx, copyQuery)
		if err != nil {
			return fmt.Errorf("failed to copy %q: %w", s.landing.URI(key), err)
		}

		rows = copied
		return nil
	})
	return rows, err
}

func (s Stage) insertTable(ctx context.Context, tableID sql.TableIdentifier, key string) (int64, error) {
	body, err := s.landing.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	reader, err := csvwriter.NewGzipReader(body)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	columns, err := reader.Header()
	if err != nil {
		return 0, err
	}

	var rows int64
	err = db.WithTx(ctx, s.store, func(tx db.Executor) error {
		if _, err := db.ExecStatement(ctx, tx, s.dialect.BuildClearTableQuery(tableID)); err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}

		return batch.ByCount(rowsPerInsert(len(columns)), reader.Read, func(chunk [][]any) error {
			query, args := s.buildInsertQuery(tableID, columns, chunk)
			inserted, err := db.ExecStatement(ctx, tx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to insert rows: %w", err)
			}
			rows += inserted
			return nil
		})
	})
	return rows, err
}

func rowsPerInsert(columns int) int {
	return max(1, min(maxRowsPerInsert, maxParamsPerInsert/max(columns, 1)))
}

func (s Stage) buildInsertQuery(tableID sql.TableIdentifier, columns []string, rows [][]any) (string, []any) {
	params := sql.NewParams(s.dialect)
	values := make([]string, len(rows))
	for i, row := range rows {
		placeholders := make([]string, len(columns))
		for j := range columns {
			var value any
			if j < len(row) {
				value = row[j]
			}
			placeholders[j] = params.Add(value)
		}
		values[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		tableID.FullyQualifiedName(s.dialect),
		strings.Join(sql.QuoteIdentifiers(columns, s.dialect), ", "),
		strings.Join(values, ", "),
	), params.Args()
}
