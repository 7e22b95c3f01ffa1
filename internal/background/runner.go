package background

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes best-effort work detached from the request that spawned
// it. Failures are logged with the task name, never returned to the caller:
// "this does not block the response" is a visible design choice, and the
// failure is still observable to operators.
type Runner struct {
	logger  *zap.Logger
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewRunner creates a new background runner. Tasks get their own context
// bounded by timeout, detached from the request context.
func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{
		logger:  logger,
		timeout: timeout,
	}
}

// Submit runs fn on its own goroutine and logs its result
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.logger.Error("Background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
			return
		}
		r.logger.Debug("Background task completed", zap.String("task", name))
	}()
}

// Wait blocks until all submitted tasks finish. Used in tests and shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
