package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when another run already holds the lock.
var ErrNotAcquired = errors.New("lock is held by another run")

// ReleaseFunc gives the lock back. It is safe to call with a context other than the one used to acquire.
type ReleaseFunc func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// BatchKey is the lock key guarding a single batch.
func BatchKey(batchNo int64) string {
	return fmt.Sprintf("warehouse:batch:%d", batchNo)
}

type noLock struct{}

// NewNoLock returns a [Locker] that always succeeds, for deployments where the scheduler already prevents overlap.
func NewNoLock() Locker {
	return noLock{}
}

func (noLock) Acquire(_ context.Context, _ string) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}
