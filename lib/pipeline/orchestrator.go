package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/lock"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics"
)

type Orchestrator struct {
	batches BatchSource
	runLog  RunLog
	locker  lock.Locker
	opts    Options
}

func NewOrchestrator(batches BatchSource, runLog RunLog, locker lock.Locker, opts Options) Orchestrator {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NullMetricsProvider{}
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if locker == nil {
		locker = lock.NewNoLock()
	}

	return Orchestrator{batches: batches, runLog: runLog, locker: locker, opts: opts}
}

// Run executes [stages] in order against the current batch and stops at the first failure.
// The returned result is always populated, [Result.Err] carries the reason when the run did not pass.
func (o Orchestrator) Run(ctx context.Context, stages []Stage) Result {
	result := Result{
		RunID:     uuid.NewString(),
		State:     Idle,
		Stages:    make([]StageResult, len(stages)),
		StartedAt: o.opts.Now(),
	}

	for i, stage := range stages {
		result.Stages[i] = StageResult{Name: stage.Name(), Status: Skipped}
	}

	logger := slog.With(slog.String("runID", result.RunID))
	o.run(ctx, logger, stages, &result)
	result.Duration = o.opts.Now().Sub(result.StartedAt)

	if result.Err != nil {
		result.Error = result.Err.Error()
	}

	o.opts.Metrics.Incr("pipeline.status", map[string]string{"status": string(result.State)})
	if err := o.opts.Metrics.Flush(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Failed to flush metrics", slog.Any("err", err))
	}

	if o.opts.Notifier != nil {
		if err := o.opts.Notifier.Notify(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn("Failed to publish run notification", slog.Any("err", err))
		}
	}

	return result
}

func (o Orchestrator) abort(result *Result, err error) {
	result.State = Failed
	result.Err = err
}

// checkPreviousRun reports how the latest logged run ended. A failure to read the log does not stop this run.
func (o Orchestrator) checkPreviousRun(ctx context.Context, logger *slog.Logger, result *Result) {
	previous, err := o.runLog.Latest(ctx)
	if err != nil {
		var noBatchErr *batchcontrol.NoBatchFoundError
		if errors.As(err, &noBatchErr) {
			logger.Info("No previous run in the batch log")
		} else {
			logger.Warn("Failed to read the previous run", slog.Any("err", err))
		}
		return
	}

	result.PreviousRun = &previous
	attrs := []any{
		slog.Int64("previousBatchNo", previous.Batch.No),
		slog.String("previousStatus", previous.Status.String()),
		slog.Time("previousStartTime", previous.StartTime),
	}

	if previous.Status == batchcontrol.Passed {
		logger.Info("Previous run passed", attrs...)
		return
	}

	o.opts.Metrics.Incr("pipeline.previous_not_passed", map[string]string{"status": previous.Status.String()})
	logger.Warn("Previous run did not pass", attrs...)
}

func (o Orchestrator) run(ctx context.Context, logger *slog.Logger, stages []Stage, result *Result) {
	batch, err := o.batches.Current(ctx)
	if err != nil {
		o.abort(result, fmt.Errorf("failed to resolve the current batch: %w", err))
		logger.Error("Failed to resolve the current batch", slog.Any("err", err))
		return
	}

	result.Batch = batch
	logger = logger.With(slog.Int64("batchNo", batch.No), slog.String("batchDate", batch.Date.Format(time.DateOnly)))

	release, err := o.locker.Acquire(ctx, lock.BatchKey(batch.No))
	if err != nil {
		o.abort(result, fmt.Errorf("failed to acquire lock for batch %d: %w", batch.No, err))
		logger.Error("Failed to acquire the batch lock", slog.Any("err", err))
		return
	}

	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release the batch lock", slog.Any("err", err))
		}
	}()

	o.checkPreviousRun(ctx, logger, result)

	running, err := o.runLog.IsRunning(ctx, batch)
	if err != nil {
		o.abort(result, fmt.Errorf("failed to check the batch log: %w", err))
		logger.Error("Failed to check the batch log", slog.Any("err", err))
		return
	}

	if running {
		if !o.opts.Force {
			o.abort(result, fmt.Errorf("batch %d: %w", batch.No, batchcontrol.ErrAlreadyRunning))
			logger.Error("Batch is already marked as running, pass --force to run it anyway")
			return
		}
		logger.Warn("Batch is already marked as running, continuing because of --force")
	}

	if err = o.runLog.Begin(ctx, batch); err != nil {
		o.abort(result, err)
		logger.Error("Failed to record the start of the batch", slog.Any("err", err))
		return
	}

	result.State = Running
	logger.Info("Starting batch", slog.Int("stages", len(stages)))

	for i, stage := range stages {
		stageLogger := logger.With(slog.String("stage", stage.Name()))
		tags := map[string]string{"stage": stage.Name()}

		start := o.opts.Now()
		stageErr := stage.Run(ctx, batch)
		duration := o.opts.Now().Sub(start)

		result.Stages[i].Duration = duration
		o.opts.Metrics.Timing("stage.duration", duration, tags)

		if stageErr != nil {
			result.Stages[i].Status = StageFailed
			result.Stages[i].Error = stageErr.Error()
			result.FailedStage = stage.Name()
			o.abort(result, fmt.Errorf("stage %q failed: %w", stage.Name(), stageErr))
			o.opts.Metrics.Incr("stage.failed", tags)
			stageLogger.Error("Stage failed, skipping the remaining stages", slog.Any("err", stageErr), slog.Duration("duration", duration))
			break
		}

		result.Stages[i].Status = Succeeded
		stageLogger.Info("Stage finished", slog.Duration("duration", duration))
	}

	status := batchcontrol.Failed
	if result.State == Running {
		result.State = Passed
		status = batchcontrol.Passed
	}

	// The outcome is recorded even when the run was interrupted.
	if err = o.runLog.Finish(context.WithoutCancel(ctx), batch, status); err != nil {
		logger.Error("Failed to record the outcome of the batch", slog.Any("err", err), slog.String("status", status.String()))
	}

	logger.Info("Batch finished", slog.String("state", string(result.State)))
}
