package service

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull  = errors.New("job queue is full")
	ErrPoolClosed = errors.New("worker pool is not running")
)

// Pool runs jobs on a fixed set of workers and reports every result on the
// completion channel. A job that has started always runs to completion; only
// jobs still queued at shutdown are dropped.
type Pool[J, R any] struct {
	workers     int
	jobs        chan J
	completions chan R
	handle      func(ctx context.Context, job J) R
	running     atomic.Bool
	closed      atomic.Bool
}

func NewPool[J, R any](workers, queueSize int, handle func(ctx context.Context, job J) R) *Pool[J, R] {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool[J, R]{
		workers:     workers,
		jobs:        make(chan J, queueSize),
		completions: make(chan R, workers),
		handle:      handle,
	}
}

// Submit enqueues job without blocking.
func (p *Pool[J, R]) Submit(job J) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Completions delivers one result per executed job. It is closed after Run returns.
func (p *Pool[J, R]) Completions() <-chan R {
	return p.completions
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has finished.
func (p *Pool[J, R]) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("worker pool already running")
	}
	defer close(p.completions)
	defer p.closed.Store(true)

	// Jobs never see shutdown cancellation; their own timeouts bound them.
	jobCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-p.jobs:
					p.completions <- p.handle(jobCtx, job)
				}
			}
		})
	}
	return g.Wait()
}
