// Package workerpool provides the dual execution substrate for request
// stages: a bounded pool for CPU-bound work and a dedicated background
// runner for I/O-bound work, so neither can starve the other.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog/log"
)

// ErrShutdown is returned when work is submitted after Shutdown.
var ErrShutdown = errors.New("workerpool: pool is shut down")

// Pool schedules CPU-bound functions onto a bounded set of workers and
// I/O-bound tasks onto a dedicated background goroutine. Callers suspend on
// their own result; they never block each other.
type Pool struct {
	sem *semaphore.Weighted

	ioTasks chan func()
	ioDone  chan struct{}

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	stopOnce sync.Once
}

// New creates a pool with maxWorkers CPU slots and starts the I/O runner.
func New(maxWorkers int) *Pool {
	p := &Pool{
		sem:     semaphore.NewWeighted(int64(maxWorkers)),
		ioTasks: make(chan func(), 64),
		ioDone:  make(chan struct{}),
	}
	go p.runIOLoop()
	return p
}

func (p *Pool) runIOLoop() {
	defer close(p.ioDone)
	for task := range p.ioTasks {
		task()
	}
}

// submit reserves a CPU slot and registers the work as in-flight.
func (p *Pool) submit(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShutdown
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.inflight.Done()
		return err
	}
	return nil
}

// RunCPU runs fn on the CPU pool and blocks the caller until fn completes or
// ctx is done. When ctx expires first the caller is released immediately
// with ctx.Err(); the worker finishes in the background and frees its slot.
func RunCPU[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.submit(ctx); err != nil {
		return zero, err
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		defer p.inflight.Done()
		v, err := fn()
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// RunIO schedules task onto the dedicated I/O runner and blocks the caller
// until it completes or ctx is done. The task receives ctx so a timeout
// halts the underlying work, not just the waiting caller.
func RunIO[T any](ctx context.Context, p *Pool, task func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrShutdown
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	wrapped := func() {
		defer p.inflight.Done()
		v, err := task(ctx)
		done <- outcome{v, err}
	}

	select {
	case p.ioTasks <- wrapped:
	case <-ctx.Done():
		p.inflight.Done()
		return zero, ctx.Err()
	}

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Shutdown stops accepting new work, waits for in-flight work to finish or
// ctx to expire, then stops the I/O runner. Repeated calls are no-ops.
func (p *Pool) Shutdown(ctx context.Context) {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		finished := make(chan struct{})
		go func() {
			p.inflight.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-ctx.Done():
			// A submit may still be parked on the task queue; closing it
			// now could panic that sender. The process is exiting anyway.
			log.Warn().Msg("worker pool shutdown timed out waiting for in-flight work")
			return
		}

		close(p.ioTasks)
		select {
		case <-p.ioDone:
		case <-ctx.Done():
		}
	})
}
