package extract

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

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

// Stage copies every row changed since the batch date from the source system into the landing area.
type Stage struct {
	source  db.Store
	dialect sql.Dialect
	schema  string
	tables  []config.SourceTable
	landing objectstore.Store
	prefix  string
	tempDir string
	metrics base.Client
}

type Args struct {
	Source  db.Store
	Dialect sql.Dialect
	Config  config.Source
	Landing objectstore.Store
	Prefix  string
	TempDir string
	Metrics base.Client
}

func NewStage(args Args) Stage {
	metricsClient := args.Metrics
	if metricsClient == nil {
		metricsClient = metrics.NullMetricsProvider{}
	}

	return Stage{
		source:  args.Source,
		dialect: args.Dialect,
		schema:  args.Config.Schema,
		tables:  args.Config.Tables,
		landing: args.Landing,
		prefix:  args.Prefix,
		tempDir: cmp.Or(args.TempDir, os.TempDir()),
		metrics: metricsClient,
	}
}

func (Stage) Name() string {
	return string(constants.ExtractStage)
}

func (s Stage) Run(ctx context.Context, batch batchcontrol.Batch) error {
	for _, table := range s.tables {
		rows, err := s.extractTable(ctx, table, batch)
		if err != nil {
			return fmt.Errorf("failed to extract %q: %w", table.Name, err)
		}

		s.metrics.Count("extract.rows", rows, map[string]string{"table": strings.ToLower(table.Name)})
		slog.Info("Extracted table", slog.String("table", table.Name), slog.Int64("rows", rows))
	}

	return nil
}

func (s Stage) buildQuery(table config.SourceTable, batch batchcontrol.Batch) (string, []any) {
	params := sql.NewParams(s.dialect)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s >= %s",
		strings.Join(sql.QuoteIdentifiers(table.Columns, s.dialect), ", "),
		sql.NewTableIdentifier(s.schema, table.Name).FullyQualifiedName(s.dialect),
		s.dialect.QuoteIdentifier(table.UpdateColumn),
		params.Add(batch.Date),
	)
	return query, params.Args()
}

func (s Stage) extractTable(ctx context.Context, table config.SourceTable, batch batchcontrol.Batch) (int64, error) {
	fp := filepath.Join(s.tempDir, fmt.Sprintf("%s_%d.csv.gz", strings.ToLower(table.Name), batch.No))
	defer func() {
		if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove extract file", slog.String("filePath", fp), slog.Any("err", err))
		}
	}()

	count, err := s.writeFile(ctx, fp, table, batch)
	if err != nil {
		return 0, err
	}

	file, err := os.Open(fp)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q: %w", fp, err)
	}
	defer file.Close()

	uri, err := s.landing.Upload(ctx, objectstore.Key(s.prefix, table.Name, batch.Date), file)
	if err != nil {
		return 0, err
	}

	slog.Debug("Uploaded extract", slog.String("uri", uri))
	return count, nil
}

func (s Stage) writeFile(ctx context.Context, fp string, table config.SourceTable, batch batchcontrol.Batch) (int64, error) {
	query, args := s.buildQuery(table, batch)
	rows, err := s.source.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query source: %w", err)
	}
	defer rows.Close()

	writer, err := csvwriter.NewGzipWriter(fp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %q: %w", fp, err)
	}

	count, err := writeRows(writer, rows, table.Columns)
	if closeErr := writer.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %q: %w", fp, closeErr)
	}
	return count, err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func writeRows(writer *csvwriter.GzipWriter, rows rowScanner, columns []string) (int64, error) {
	if err := writer.Write(columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	var count int64
	record := make([]string, len(columns))
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return count, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, value := range values {
			record[i] = csvwriter.FormatValue(value)
		}

		if err := writer.Write(record); err != nil {
			return count, fmt.Errorf("failed to write row: %w", err)
		}
		count++
	}

	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return count, nil
}
