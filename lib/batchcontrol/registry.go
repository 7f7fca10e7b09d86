package batchcontrol

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	sqllib "github.com/artie-labs/warehouse/lib/sql"
)

type Registry struct {
	store   db.Store
	dialect sqllib.Dialect
	tableID sqllib.TableIdentifier
}

func NewRegistry(store db.Store, dialect sqllib.Dialect, metadataSchema string) Registry {
	return Registry{
		store:   store,
		dialect: dialect,
		tableID: sqllib.NewTableIdentifier(metadataSchema, constants.BatchControlTable),
	}
}

func (r Registry) buildCurrentQuery() string {
	table := r.tableID.FullyQualifiedName(r.dialect)
	batchNo := r.dialect.QuoteIdentifier(constants.EtlBatchNo)
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = (SELECT MAX(%s) FROM %s)",
		batchNo, r.dialect.QuoteIdentifier(constants.EtlBatchDate), table,
		batchNo, batchNo, table,
	)
}

// Current returns the batch with the highest batch number.
func (r Registry) Current(ctx context.Context) (Batch, error) {
	var batch Batch
	if err := r.store.QueryRowContext(ctx, r.buildCurrentQuery()).Scan(&batch.No, &batch.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, &NoBatchFoundError{Table: r.tableID.String()}
		}
		return Batch{}, fmt.Errorf("failed to query %q: %w", r.tableID.String(), err)
	}

	batch.Date = truncateToDate(batch.Date)
	return batch, nil
}

func truncateToDate(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
