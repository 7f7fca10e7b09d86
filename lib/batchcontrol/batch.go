package batchcontrol

import (
	"errors"
	"fmt"
	"time"
)

// Batch identifies one run of the pipeline. The highest batch number in the control table is the current one.
type Batch struct {
	No   int64     `json:"batchNo"`
	Date time.Time `json:"batchDate"`
}

func (b Batch) String() string {
	return fmt.Sprintf("%d (%s)", b.No, b.Date.Format(time.DateOnly))
}

// PreviousDay is the day before the batch date, used to close history rows.
func (b Batch) PreviousDay() time.Time {
	return b.Date.AddDate(0, 0, -1)
}

type Status string

const (
	Running Status = "R"
	Passed  Status = "P"
	Failed  Status = "F"
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%s)", string(s))
	}
}

type NoBatchFoundError struct {
	Table string
}

func (e *NoBatchFoundError) Error() string {
	return fmt.Sprintf("no batch found in %q", e.Table)
}

var ErrAlreadyRunning = errors.New("batch is already running")
