package merge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/dwh"
	"github.com/artie-labs/warehouse/lib/sql"
)

const (
	targetAlias    = "t"
	sourceAlias    = "s"
	referenceAlias = "r"
)

type Result struct {
	Updated  int64 `json:"updated"`
	Inserted int64 `json:"inserted"`
	// Resolved counts rows whose self-referencing foreign key was filled in after the insert, or cleared because the
	// parent is gone.
	Resolved int64 `json:"resolved"`
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

// Merge updates every warehouse row that has a staging counterpart and inserts the rest, all in one transaction.
// The statements are rerunnable: a second run with the same staging data and batch leaves the business columns unchanged.
func (e Engine) Merge(ctx context.Context, store db.Store, entity Entity, batch batchcontrol.Batch) (Result, error) {
	if err := entity.Validate(); err != nil {
		return Result{}, err
	}

	update := e.buildUpdateQuery(entity, batch)
	insert := e.buildInsertQuery(entity, batch)
	selfReferences := e.buildSelfReferenceQueries(entity)

	var result Result
	err := db.WithTx(ctx, store, func(tx db.Executor) error {
		var err error
		if result.Updated, err = db.ExecStatement(ctx, tx, update.query, update.args...); err != nil {
			return fmt.Errorf("update phase: %w", err)
		}

		if result.Inserted, err = db.ExecStatement(ctx, tx, insert.query, insert.args...); err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}

		for _, selfReference := range selfReferences {
			rows, err := db.ExecStatement(ctx, tx, selfReference)
			if err != nil {
				return fmt.Errorf("self reference phase: %w", err)
			}
			result.Resolved += rows
		}

		return nil
	})
	if err != nil {
		return Result{}, db.NewPersistenceError("merge into", e.cfg.WarehouseTable(entity.Target).String(), err)
	}

	slog.Info("Merged entity",
		slog.String("entity", entity.Name),
		slog.Int64("batchNo", batch.No),
		slog.Int64("updated", result.Updated),
		slog.Int64("inserted", result.Inserted),
		slog.Int64("resolved", result.Resolved),
	)
	return result, nil
}

func (e Engine) naturalKeyCondition(entity Entity, alias string) string {
	parts := make([]string, len(entity.NaturalKeys))
	for i, key := range entity.NaturalKeys {
		parts[i] = fmt.Sprintf("%s = %s", e.cfg.Column(alias, key.Target), e.cfg.Column(sourceAlias, key.Source))
	}
	return strings.Join(parts, " AND ")
}

type foreignKeyJoin struct {
	column string
	value  string
	join   string
}

// foreignKeyJoins LEFT JOINs every referenced table so an unmatched natural key resolves to NULL.
func (e Engine) foreignKeyJoins(entity Entity) []foreignKeyJoin {
	var joins []foreignKeyJoin
	for i, fk := range entity.ForeignKeys {
		if entity.IsSelfReference(fk) {
			continue
		}

		alias := fmt.Sprintf("fk%d", i)
		joins = append(joins, foreignKeyJoin{
			column: fk.Column,
			value:  e.cfg.Column(alias, fk.ReferencedSurrogateKey),
			join: fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s",
				e.cfg.WarehouseTable(fk.References).FullyQualifiedName(e.cfg.Dialect), alias,
				e.cfg.Column(sourceAlias, fk.SourceColumn), e.cfg.Column(alias, fk.ReferencedKey),
			),
		})
	}
	return joins
}

func (e Engine) buildUpdateQuery(entity Entity, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)

	var assignments []sql.Assignment
	for _, attribute := range entity.Attributes {
		assignments = append(assignments, sql.Assignment{Column: attribute.Target, Value: e.cfg.Column(sourceAlias, attribute.Source)})
	}

	var joins []string
	for _, fkJoin := range e.foreignKeyJoins(entity) {
		assignments = append(assignments, sql.Assignment{Column: fkJoin.column, Value: fkJoin.value})
		joins = append(joins, fkJoin.join)
	}

	assignments = append(assignments,
		sql.Assignment{Column: constants.SrcUpdateTimestamp, Value: e.cfg.Column(sourceAlias, entity.sourceUpdateTimestamp())},
		sql.Assignment{Column: constants.DwUpdateTimestamp, Value: params.Add(e.cfg.Timestamp())},
		sql.Assignment{Column: constants.EtlBatchNo, Value: params.Add(batch.No)},
		sql.Assignment{Column: constants.EtlBatchDate, Value: params.Add(batch.Date)},
	)

	query := e.cfg.Dialect.BuildUpdateFromQuery(sql.UpdateFromArgs{
		Target:      e.cfg.WarehouseTable(entity.Target),
		TargetAlias: targetAlias,
		Source:      e.cfg.StagingTable(entity.Source).FullyQualifiedName(e.cfg.Dialect),
		SourceAlias: sourceAlias,
		Condition:   e.naturalKeyCondition(entity, targetAlias),
		Joins:       joins,
		Assignments: assignments,
	})

	return statement{query: query, args: params.Args()}
}

func (e Engine) buildInsertQuery(entity Entity, batch batchcontrol.Batch) statement {
	params := sql.NewParams(e.cfg.Dialect)

	var columns, values, joins []string
	for _, column := range slices.Concat(entity.NaturalKeys, entity.Attributes) {
		columns = append(columns, column.Target)
		values = append(values, e.cfg.Column(sourceAlias, column.Source))
	}

	for _, fkJoin := range e.foreignKeyJoins(entity) {
		columns = append(columns, fkJoin.column)
		values = append(values, fkJoin.value)
		joins = append(joins, fkJoin.join)
	}

	now := e.cfg.Timestamp()
	columns = append(columns,
		constants.SrcCreateTimestamp, constants.SrcUpdateTimestamp,
		constants.DwCreateTimestamp, constants.DwUpdateTimestamp,
		constants.EtlBatchNo, constants.EtlBatchDate,
	)
	values = append(values,
		e.cfg.Column(sourceAlias, entity.sourceCreateTimestamp()), e.cfg.Column(sourceAlias, entity.sourceUpdateTimestamp()),
		params.Add(now), params.Add(now),
		params.Add(batch.No), params.Add(batch.Date),
	)

	joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s",
		e.cfg.WarehouseTable(entity.Target).FullyQualifiedName(e.cfg.Dialect), targetAlias,
		e.naturalKeyCondition(entity, targetAlias),
	))

	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s AS %s %s WHERE %s IS NULL",
		e.cfg.WarehouseTable(entity.Target).FullyQualifiedName(e.cfg.Dialect),
		strings.Join(sql.QuoteIdentifiers(columns, e.cfg.Dialect), ", "),
		strings.Join(values, ", "),
		e.cfg.StagingTable(entity.Source).FullyQualifiedName(e.cfg.Dialect), sourceAlias,
		strings.Join(joins, " "),
		e.cfg.Column(targetAlias, entity.NaturalKeys[0].Target),
	)

	return statement{query: query, args: params.Args()}
}

// buildSelfReferenceQueries points rows at their parent within the same table, after the parent may have been inserted.
// Rows whose parent is NULL or missing from the table lose their stale surrogate key.
func (e Engine) buildSelfReferenceQueries(entity Entity) []string {
	var queries []string
	for _, fk := range entity.ForeignKeys {
		if !entity.IsSelfReference(fk) {
			continue
		}

		mirrored, _ := entity.targetColumnFor(fk.SourceColumn)
		target := e.cfg.WarehouseTable(entity.Target)
		queries = append(queries,
			e.cfg.Dialect.BuildUpdateFromQuery(sql.UpdateFromArgs{
				Target:      target,
				TargetAlias: targetAlias,
				Source:      target.FullyQualifiedName(e.cfg.Dialect),
				SourceAlias: referenceAlias,
				Condition: fmt.Sprintf("%s = %s AND %s",
					e.cfg.Column(targetAlias, mirrored), e.cfg.Column(referenceAlias, fk.ReferencedKey),
					e.cfg.Dialect.IsDistinctFrom(e.cfg.Column(targetAlias, fk.Column), e.cfg.Column(referenceAlias, fk.ReferencedSurrogateKey)),
				),
				Assignments: []sql.Assignment{{Column: fk.Column, Value: e.cfg.Column(referenceAlias, fk.ReferencedSurrogateKey)}},
			}),
			e.buildClearSelfReferenceQuery(target, mirrored, fk),
		)
	}
	return queries
}

// buildClearSelfReferenceQuery reads the referenced keys through a derived table, MySQL rejects a subquery on the
// table being updated otherwise.
func (e Engine) buildClearSelfReferenceQuery(target sql.TableIdentifier, mirrored string, fk ForeignKey) string {
	column := e.cfg.Dialect.QuoteIdentifier(fk.Column)
	mirroredColumn := e.cfg.Dialect.QuoteIdentifier(mirrored)
	referencedKey := e.cfg.Dialect.QuoteIdentifier(fk.ReferencedKey)
	return fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s IS NOT NULL AND (%s IS NULL OR %s NOT IN (SELECT %s FROM (SELECT %s FROM %s WHERE %s IS NOT NULL) AS %s))",
		target.FullyQualifiedName(e.cfg.Dialect), column,
		column, mirroredColumn, mirroredColumn,
		referencedKey, referencedKey, target.FullyQualifiedName(e.cfg.Dialect), referencedKey, referenceAlias,
	)
}
