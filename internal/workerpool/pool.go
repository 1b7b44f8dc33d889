// Package workerpool implements C7: a bounded-concurrency task pool, used
// by the research orchestrator to fan out fetch/extract work and by the
// MCP tool dispatcher to run tool invocations. It
// follows the teacher's JobProcessor lifecycle idiom (start/stop with a
// cancelable context and a WaitGroup) but uses golang.org/x/sync/errgroup
// for the per-task error propagation the teacher's queue-polling loop
// didn't need.
package workerpool

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of pool work. A non-nil error is logged and does not
// stop sibling tasks — the pool reports the first error via Wait only
// if StopOnError is set.
type Task func(ctx context.Context) error

// Pool runs submitted Tasks with bounded concurrency.
type Pool struct {
	group       *errgroup.Group
	ctx         context.Context
	sem         chan struct{}
	logger      arbor.ILogger
	stopOnError bool

	mu        sync.Mutex
	submitted int
	completed int
	failed    int
}

// Option configures a Pool at construction.
type Option func(*Pool)

// StopOnError cancels the pool's context after the first task error,
// preventing further submitted tasks from starting.
func StopOnError() Option {
	return func(p *Pool) { p.stopOnError = true }
}

// New builds a Pool bounded to concurrency simultaneous tasks.
func New(ctx context.Context, concurrency int, logger arbor.ILogger, opts ...Option) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		group:  group,
		ctx:    gctx,
		sem:    make(chan struct{}, concurrency),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Context returns the pool's (possibly cancelled) context, for tasks that
// need to observe pool-wide cancellation without a closure capture.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit blocks until a concurrency slot is free or ctx is done, then runs
// task in its own goroutine. Submit itself never blocks on task
// completion.
func (p *Pool) Submit(task Task) error {
	select {
	case p.sem <- struct{}{}:
	case <-p.ctx.Done():
		return p.ctx.Err()
	}

	p.mu.Lock()
	p.submitted++
	p.mu.Unlock()

	p.group.Go(func() error {
		defer func() { <-p.sem }()
		err := task(p.ctx)
		p.mu.Lock()
		if err != nil {
			p.failed++
		} else {
			p.completed++
		}
		p.mu.Unlock()
		if err != nil {
			p.logger.Debug().Err(err).Msg("worker pool task failed")
			if p.stopOnError {
				return err
			}
		}
		return nil
	})
	return nil
}

// Wait blocks until every submitted task has returned, then returns the
// first task error if StopOnError was set (nil otherwise, matching the
// teacher's fire-and-log convention for background job workers).
func (p *Pool) Wait() error {
	return p.group.Wait()
}

// Stats reports submitted/completed/failed counts for metrics reporting.
func (p *Pool) Stats() (submitted, completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted, p.completed, p.failed
}
