package pool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(msg, append(keysAndValues, slog.Any("err", err))...)
}

// StartCron runs [job] on the cron [spec] until [ctx] is cancelled, then waits for a job in flight to finish.
// A run that is still going when the next one is due causes that next one to be skipped.
func StartCron(ctx context.Context, spec string, job func(ctx context.Context)) error {
	logger := cronLogger{}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := scheduler.AddFunc(spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	slog.Info("Starting scheduler...", slog.String("cron", spec))
	scheduler.Start()
	<-ctx.Done()

	slog.Info("Stopping scheduler, waiting for the current run to finish...")
	<-scheduler.Stop().Done()
	return nil
}
