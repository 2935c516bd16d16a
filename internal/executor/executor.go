package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrExecutorBusy   = errors.New("executor is at capacity")
	ErrExecutorClosed = errors.New("executor is shut down")
)

type Task func(ctx context.Context) error

// Executor runs tasks in the background with a lifetime independent of the
// caller. The context given to a task keeps the values of the submitting
// context but is never cancelled by it.
type Executor struct {
	mu     sync.Mutex
	group  *errgroup.Group
	closed bool
}

// New returns an executor running at most limit tasks at once. A limit
// lower than 1 means no limit.
func New(limit int) *Executor {
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &Executor{group: g}
}

// Submit starts task on its own goroutine. It never blocks: when the executor
// is saturated ErrExecutorBusy is returned and the task is not run.
func (e *Executor) Submit(ctx context.Context, name string, task Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExecutorClosed
	}

	taskCtx := context.WithoutCancel(ctx)
	started := e.group.TryGo(func() error {
		logger := zap.S().Named("executor").With("task", name)
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("task panicked", "panic", r)
			}
		}()

		logger.Debug("task started")
		if err := task(taskCtx); err != nil {
			logger.Infow("task finished with error", "error", err)
			return nil
		}
		logger.Debug("task finished")
		return nil
	})
	if !started {
		return fmt.Errorf("%w: cannot start %s", ErrExecutorBusy, name)
	}
	return nil
}

// Shutdown stops accepting tasks and waits for the running ones to finish or
// for ctx to be done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = e.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
