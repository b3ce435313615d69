// Package tasks runs fire-and-forget side effects off the request path.
package tasks

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"sync"
	"time"
)

type task struct {
	name    string
	orderID int64
	fn      func(ctx context.Context) error
}

// Runner is a bounded worker pool fed by a buffered inbox. Tasks never see
// the caller's context: each gets a fresh one bounded by the runner timeout.
type Runner struct {
	inbox   chan task
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewRunner(workers, buf int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Runner{inbox: make(chan task, buf), timeout: timeout}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for t := range r.inbox {
				r.run(t)
			}
		}()
	}
	return r
}

// Go enqueues fn and returns immediately. A full inbox spills onto its own
// goroutine instead of blocking the caller.
func (r *Runner) Go(name string, orderID int64, fn func(ctx context.Context) error) {
	t := task{name: name, orderID: orderID, fn: fn}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		zap.L().Warn("task dropped after close", zap.String("task", name), zap.Int64("order_id", orderID))
		return
	}
	select {
	case r.inbox <- t:
	default:
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.run(t)
		}()
	}
}

func (r *Runner) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	err := safeCall(ctx, t.fn)
	if err != nil {
		zap.L().Error("background task failed",
			zap.String("task", t.name), zap.Int64("order_id", t.orderID),
			zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	zap.L().Debug("background task done",
		zap.String("task", t.name), zap.Int64("order_id", t.orderID), zap.Duration("took", time.Since(start)))
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

// Close stops accepting tasks and waits for queued ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.inbox)
	r.mu.Unlock()
	r.wg.Wait()
}
