package manager

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	// taskSpacing is the minimum gap between queued gateway tasks. The
	// gateway throttles aggressive room-member fetching, so the queue
	// starts at most one task per interval.
	taskSpacing = 15 * time.Second

	// taskBacklog is how many tasks may wait before Enqueue drops.
	taskBacklog = 1024
)

// taskQueue runs gateway tasks one at a time, rate limited. Task
// failures are logged and swallowed; the queue never stops on them.
type taskQueue struct {
	limiter *rate.Limiter
	tasks   chan func(context.Context)
	logger  *slog.Logger
}

func newTaskQueue(logger *slog.Logger) *taskQueue {
	return &taskQueue{
		limiter: rate.NewLimiter(rate.Every(taskSpacing), 1),
		tasks:   make(chan func(context.Context), taskBacklog),
		logger:  logger,
	}
}

// Enqueue adds a task. Tasks run in enqueue order on the single worker.
// A full backlog drops the task with a log line rather than blocking
// the caller; the return value reports whether the task was accepted.
func (q *taskQueue) Enqueue(task func(context.Context)) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		q.logger.Warn("task queue backlog full, dropping task")
		return false
	}
}

// Run works the queue until ctx is cancelled.
func (q *taskQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}

			task(ctx)
		}
	}
}
