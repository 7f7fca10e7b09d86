package warehouse

import (
	"context"
	"fmt"

	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/dwh"
	"github.com/artie-labs/warehouse/lib/dwh/aggregate"
	"github.com/artie-labs/warehouse/lib/dwh/history"
	"github.com/artie-labs/warehouse/lib/dwh/merge"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/base"
	"github.com/artie-labs/warehouse/models/catalog"
)

// Stage moves staged data into the warehouse: entities first, then history, then the summaries built on top of them.
type Stage struct {
	store     db.Store
	catalog   catalog.Catalog
	merge     merge.Engine
	history   history.Engine
	aggregate aggregate.Engine
	metrics   base.Client
}

func NewStage(store db.Store, cfg dwh.Config, cat catalog.Catalog, mode constants.RollupMode, metricsClient base.Client) Stage {
	if metricsClient == nil {
		metricsClient = metrics.NullMetricsProvider{}
	}

	return Stage{
		store:     store,
		catalog:   cat,
		merge:     merge.NewEngine(cfg),
		history:   history.NewEngine(cfg),
		aggregate: aggregate.NewEngine(cfg, mode),
		metrics:   metricsClient,
	}
}

func (Stage) Name() string {
	return string(constants.WarehouseStage)
}

func (s Stage) Run(ctx context.Context, batch batchcontrol.Batch) error {
	for _, entity := range s.catalog.Entities {
		result, err := s.merge.Merge(ctx, s.store, entity, batch)
		if err != nil {
			return fmt.Errorf("failed to merge %q: %w", entity.Name, err)
		}

		s.count("merge.rows", entity.Name, map[string]int64{"update": result.Updated, "insert": result.Inserted, "self_reference": result.Resolved})
	}

	for _, tracking := range s.catalog.Histories {
		result, err := s.history.Historize(ctx, s.store, tracking, batch)
		if err != nil {
			return fmt.Errorf("failed to historize %q: %w", tracking.Name, err)
		}

		s.count("history.rows", tracking.Name, map[string]int64{"amend": result.Amended, "close": result.Closed, "open": result.Opened})
	}

	// Summaries are rebuilt from the batch date onwards.
	since := batch.Date
	for _, daily := range s.catalog.DailySummaries {
		result, err := s.aggregate.RebuildDaily(ctx, s.store, daily, since, batch)
		if err != nil {
			return fmt.Errorf("failed to rebuild %q: %w", daily.Name, err)
		}

		s.count("summary.rows", daily.Name, map[string]int64{"delete": result.Deleted, "insert": result.Inserted})
	}

	for _, monthly := range s.catalog.MonthlySummaries {
		result, err := s.aggregate.RollupMonthly(ctx, s.store, monthly, since, batch)
		if err != nil {
			return fmt.Errorf("failed to roll up %q: %w", monthly.Name, err)
		}

		s.count("summary.rows", monthly.Name, map[string]int64{"delete": result.Deleted, "update": result.Updated, "insert": result.Inserted})
	}

	return nil
}

func (s Stage) count(name, table string, phases map[string]int64) {
	for phase, rows := range phases {
		s.metrics.Count(name, rows, map[string]string{"table": table, "phase": phase})
	}
}
