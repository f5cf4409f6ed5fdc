package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/metrics"
)

// Runner executes deferred side effects on a bounded set of goroutines. Tasks outlive the request
// that submitted them and get their own deadline.
type Runner struct {
	timeout time.Duration

	mu     sync.Mutex
	pool   *pool.Pool
	closed bool
}

func NewRunner(maxWorkers int, timeout time.Duration) *Runner {
	return &Runner{
		timeout: timeout,
		pool:    pool.New().WithMaxGoroutines(maxWorkers),
	}
}

// Submit queues fn. It blocks while every worker is busy. Submissions after Shutdown are dropped.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		zap.L().Warn("task dropped after shutdown", zap.String("task", name))
		return
	}

	r.pool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		var (
			c   panics.Catcher
			err error
		)
		c.Try(func() { err = fn(ctx) })
		if rec := c.Recovered(); rec != nil {
			err = rec.AsError()
		}

		metrics.RecordTask(name, err)
		if err != nil {
			zap.L().Error("deferred task failed", zap.String("task", name), zap.Error(err))
		}
	})
}

// Shutdown waits for every submitted task.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.pool.Wait()
}
