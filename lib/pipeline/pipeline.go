package pipeline

import (
	"context"
	"time"

	"github.com/artie-labs/warehouse/lib/batchcontrol"
	"github.com/artie-labs/warehouse/lib/telemetry/metrics/base"
)

// Stage is one step of a run. Stages receive the batch resolved at the start of the run and never resolve it themselves.
type Stage interface {
	Name() string
	Run(ctx context.Context, batch batchcontrol.Batch) error
}

type BatchSource interface {
	Current(ctx context.Context) (batchcontrol.Batch, error)
}

type RunLog interface {
	IsRunning(ctx context.Context, batch batchcontrol.Batch) (bool, error)
	Begin(ctx context.Context, batch batchcontrol.Batch) error
	Finish(ctx context.Context, batch batchcontrol.Batch, status batchcontrol.Status) error
	Latest(ctx context.Context) (batchcontrol.LogEntry, error)
}

type Notifier interface {
	Notify(ctx context.Context, result Result) error
}

type State string

const (
	Idle    State = "idle"
	Running State = "running"
	Passed  State = "passed"
	Failed  State = "failed"
)

type StageStatus string

const (
	Succeeded   StageStatus = "succeeded"
	StageFailed StageStatus = "failed"
	Skipped     StageStatus = "skipped"
)

type StageResult struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Result struct {
	RunID       string             `json:"runID"`
	Batch       batchcontrol.Batch `json:"batch"`
	State       State              `json:"state"`
	Stages      []StageResult      `json:"stages"`
	FailedStage string             `json:"failedStage,omitempty"`
	// PreviousRun is the batch log entry that was the latest one when this run started.
	PreviousRun *batchcontrol.LogEntry `json:"previousRun,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"startedAt"`
	Duration    time.Duration          `json:"duration"`

	Err error `json:"-"`
}

func (r Result) Passed() bool {
	return r.State == Passed
}

type Options struct {
	// Force runs the batch even if the batch log still has a running entry for it.
	Force    bool
	Metrics  base.Client
	Notifier Notifier
	Now      func() time.Time
}
