// Package worker runs gateway jobs one at a time, in arrival order.
package worker

import (
	"context"
	"errors"
	"log/slog"
)

var ErrStopped = errors.New("worker: queue stopped")

// Queue feeds jobs to a single handler goroutine. Both the chat loop and the
// watcher loop enqueue here, so handlers never run concurrently.
type Queue[J any] struct {
	jobs chan J
	done chan struct{}
	log  *slog.Logger
}

func New[J any](size int, logger *slog.Logger) *Queue[J] {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue[J]{
		jobs: make(chan J, size),
		done: make(chan struct{}),
		log:  logger,
	}
}

// Start consumes jobs until ctx is cancelled. A panicking job is logged and
// does not stop the queue.
func (q *Queue[J]) Start(ctx context.Context, handle func(context.Context, J)) {
	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-q.jobs:
				q.run(ctx, handle, job)
			}
		}
	}()
}

func (q *Queue[J]) run(ctx context.Context, handle func(context.Context, J), job J) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("worker_job_panic", "panic", r)
		}
	}()
	handle(ctx, job)
}

// Enqueue blocks until the job is accepted, ctx is done, or the queue stops.
func (q *Queue[J]) Enqueue(ctx context.Context, job J) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrStopped
	case q.jobs <- job:
		return nil
	}
}

// Done is closed after the consumer goroutine exits.
func (q *Queue[J]) Done() <-chan struct{} {
	return q.done
}
