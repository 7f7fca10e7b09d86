package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/artie-labs/warehouse/clients/redis"
	"github.com/artie-labs/warehouse/clients/sqs"
	"github.com/artie-labs/warehouse/clients/utils"
	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/config/constants"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/dwh"
	"github.com/artie-labs/warehouse/lib/lock"
	"github.com/artie-labs/warehouse/lib/logger"
	"github.com/artie-labs/warehouse/lib/objectstore"
	"github.com/artie-labs/warehouse/lib/pipeline"
	"github.com/artie-labs/warehouse/lib/sql"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/base"
	"github.com/artie-labs/warehouse/processes/extract"
	"github.com/artie-labs/warehouse/processes/landing"
	"github.com/artie-labs/warehouse/processes/pool"
	"github.com/artie-labs/warehouse/processes/warehouse"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := config.LoadSettings(os.Args[1:], true)
	if err != nil {
		logger.Fatal("Failed to initialize config", slog.Any("err", err))
	}

	log, usingSentry := logger.NewLogger(settings)
	slog.SetDefault(log)
	if usingSentry {
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, dialect, err := utils.Load(ctx, settings.Config.Destination.Database)
	if err != nil {
		slog.Error("Failed to connect to the destination", slog.Any("err", err), slog.String("destination", settings.Config.Destination.String()))
		return 1
	}
	defer store.Close()

	metricsClient := metrics.LoadExporter(settings.Config)
	orchestrator, err := buildOrchestrator(ctx, settings, store, dialect, metricsClient)
	if err != nil {
		slog.Error("Failed to set up the pipeline", slog.Any("err", err))
		return 1
	}

	stages, closeStages, err := buildStages(ctx, settings.Config, store, dialect, metricsClient)
	if err != nil {
		slog.Error("Failed to set up the pipeline stages", slog.Any("err", err))
		return 1
	}
	defer closeStages()

	slog.Info("Config is loaded",
		slog.String("destination", settings.Config.Destination.String()),
		slog.Any("stages", settings.Config.Stages),
		slog.String("rollupMode", string(settings.Config.RollupMode)),
		slog.String("lock", string(settings.Config.Lock.Kind)),
	)

	if settings.Cron != "" {
		err = pool.StartCron(ctx, settings.Cron, func(ctx context.Context) {
			orchestrator.Run(ctx, stages)
		})
		if err != nil {
			slog.Error("Scheduler failed", slog.Any("err", err))
			return 1
		}
		return 0
	}

	if result := orchestrator.Run(ctx, stages); !result.Passed() {
		return 1
	}
	return 0
}

func buildOrchestrator(ctx context.Context, settings *config.Settings, store db.Store, dialect sql.Dialect, metricsClient base.Client) (pipeline.Orchestrator, error) {
	cfg := settings.Config
	var locker lock.Locker
	switch cfg.Lock.Kind {
	case constants.DatabaseLock:
		databaseLocker, err := lock.NewDatabaseLocker(store, dialect)
		if err != nil {
			return pipeline.Orchestrator{}, err
		}
		locker = databaseLocker
	case constants.RedisLock:
		redisLocker, err := redis.NewLocker(ctx, *cfg.Lock.Redis, cfg.LockTTL())
		if err != nil {
			return pipeline.Orchestrator{}, err
		}
		locker = redisLocker
	default:
		locker = lock.NewNoLock()
	}

	opts := pipeline.Options{Force: settings.Force, Metrics: metricsClient}
	if cfg.Notifications.SQS != nil {
		notifier, err := sqs.NewNotifier(ctx, *cfg.Notifications.SQS)
		if err != nil {
			return pipeline.Orchestrator{}, err
		}
		opts.Notifier = notifier
	}

	schema := cfg.Destination.Schemas.Metadata
	return pipeline.NewOrchestrator(
		batchcontrol.NewRegistry(store, dialect, schema),
		batchcontrol.NewLifecycle(store, dialect, schema, nil),
		locker,
		opts,
	), nil
}

func buildStages(ctx context.Context, cfg config.Config, store db.Store, dialect sql.Dialect, metricsClient base.Client) ([]pipeline.Stage, func(), error) {
	var stages []pipeline.Stage
	var closers []func()
	closeAll := func() {
		for _, closer := range closers {
			closer()
		}
	}

	var landingStore objectstore.Store
	if cfg.HasStage(constants.ExtractStage) || cfg.HasStage(constants.LandingStage) {
		var err error
		if landingStore, err = objectstore.Open(ctx, *cfg.Landing); err != nil {
			return nil, closeAll, fmt.Errorf("failed to open landing storage: %w", err)
		}
	}

	if cfg.HasStage(constants.ExtractStage) {
		source, sourceDialect, err := utils.Load(ctx, cfg.Source.Database)
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to connect to the source: %w", err)
		}
		closers = append(closers, func() { _ = source.Close() })

		stages = append(stages, extract.NewStage(extract.Args{
			Source:  source,
			Dialect: sourceDialect,
			Config:  *cfg.Source,
			Landing: landingStore,
			Prefix:  cfg.Landing.Prefix,
			Metrics: metricsClient,
		}))
	}

	if cfg.HasStage(constants.LandingStage) {
		stages = append(stages, landing.NewStage(landing.Args{
			Store:         store,
			Dialect:       dialect,
			StagingSchema: cfg.Destination.Schemas.Staging,
			Tables:        cfg.Source.Tables,
			Landing:       landingStore,
			Prefix:        cfg.Landing.Prefix,
			IAMRole:       cfg.Destination.IAMRole,
			Region:        cfg.Landing.Region,
			Metrics:       metricsClient,
		}))
	}

	if cfg.HasStage(constants.WarehouseStage) {
		dwhCfg := dwh.Config{
			Dialect: dialect,
			Schemas: dwh.Schemas{
				Metadata:  cfg.Destination.Schemas.Metadata,
				Staging:   cfg.Destination.Schemas.Staging,
				Warehouse: cfg.Destination.Schemas.Warehouse,
			},
		}

		stages = append(stages, warehouse.NewStage(store, dwhCfg, cfg.WarehouseCatalog(), cfg.RollupMode, metricsClient))
	}

	return stages, closeAll, nil
}
