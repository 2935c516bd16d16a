package odm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"

	"github.com/orthoflow/orthoflow/pkg/metrics"
)

// AwaitCompletion checks the status of task right away and then once per
// interval until the task reaches a terminal status or maxWait elapses.
//
// It returns the last observed info and whether the task completed. When the
// deadline passes first, the error is ErrAwaitTimeout and no further check is
// made. A failed check is retried on the next tick; after too many
// consecutive failures the last error is returned.
func (c *Client) AwaitCompletion(ctx context.Context, task *Task, interval, maxWait time.Duration) (*TaskInfo, bool, error) {
	if interval <= 0 || maxWait <= 0 {
		return nil, false, fmt.Errorf("invalid polling window: interval %s, max wait %s", interval, maxWait)
	}

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 50})
	defer ticker.Stop()

	last := &TaskInfo{UUID: task.UUID, Status: TaskStatus{Code: StatusQueued}}
	pollErrors := 0
	for {
		// select picks at random when the deadline and a tick are both ready
		if waitCtx.Err() != nil {
			return last, false, awaitError(ctx, waitCtx)
		}

		info, err := c.Info(waitCtx, task)
		metrics.IncreaseRemoteStatusChecksMetric()
		switch {
		case err == nil:
			pollErrors = 0
			last = info
			c.log.Debugw("task status", "task_id", task.UUID, "status", info.Status.Code, "progress", info.Progress)
			if info.Status.Code.Terminal() {
				return info, info.Status.Code == StatusCompleted, nil
			}
		case waitCtx.Err() != nil:
			// the deadline expired during the check, handled below
		default:
			pollErrors++
			c.log.Warnw("failed to check task status", "task_id", task.UUID, "attempt", pollErrors, "error", err)
			if pollErrors >= c.maxPollErrors {
				return last, false, fmt.Errorf("giving up after %d failed status checks: %w", pollErrors, err)
			}
		}

		select {
		case <-waitCtx.Done():
			return last, false, awaitError(ctx, waitCtx)
		case <-ticker.C:
		}
	}
}

func awaitError(ctx, waitCtx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return ErrAwaitTimeout
	}
	return waitCtx.Err()
}
