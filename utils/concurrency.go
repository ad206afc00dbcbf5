package utils

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs on a bounded number of goroutines. The first job to
// fail cancels the pool's context so queued jobs can bail out early.
type WorkerPool struct {
	group *errgroup.Group
	ctx   context.Context
}

// NewWorkerPool creates a WorkerPool with the given concurrency. Zero or
// less means one worker per CPU.
func NewWorkerPool(ctx context.Context, maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	return &WorkerPool{group: g, ctx: gctx}
}

// Context is cancelled once any job fails or the parent context is done.
func (wp *WorkerPool) Context() context.Context {
	return wp.ctx
}

// Submit enqueues a job, blocking while all workers are busy. Jobs submitted
// after cancellation are skipped.
func (wp *WorkerPool) Submit(job func(ctx context.Context) error) {
	wp.group.Go(func() error {
		if err := wp.ctx.Err(); err != nil {
			return err
		}
		return job(wp.ctx)
	})
}

// Wait blocks until all submitted jobs have completed and returns the first
// error.
func (wp *WorkerPool) Wait() error {
	return wp.group.Wait()
}
