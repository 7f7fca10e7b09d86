package base

import (
	"context"
	"time"
)

type Client interface {
	Timing(name string, value time.Duration, tags map[string]string)
	Incr(name string, tags map[string]string)
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	// Flush sends anything still buffered. A batch run calls it once before exiting.
	Flush(ctx context.Context) error
}
