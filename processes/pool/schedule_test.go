package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartCron(t *testing.T) {
	{
		// Invalid spec.
		err := StartCron(t.Context(), "every tuesday", func(context.Context) {})
		assert.ErrorContains(t, err, `invalid cron spec "every tuesday"`)
	}
	{
		// Runs until the context is cancelled.
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
		defer cancel()

		var runs atomic.Int32
		err := StartCron(ctx, "@every 1s", func(context.Context) {
			runs.Add(1)
			cancel()
		})
		assert.NoError(t, err)
		assert.Equal(t, int32(1), runs.Load())
	}
}
