// Package scheduler runs a task at a throttled cadence: the interval is
// measured from the end of one execution to the start of the next, so a slow
// task delays the following run instead of overlapping it.
package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Periodic describes a repeating task cadence.
type Periodic struct {
	Interval time.Duration
}

// Run executes task immediately and then again after each Interval-long pause.
// It blocks until ctx is cancelled; cancellation is honored between runs and
// during the pause, never by interrupting a run already in flight. The task
// receives ctx so that in-flight venue calls stop promptly on shutdown.
func (p Periodic) Run(ctx context.Context, task func(context.Context)) error {
	if p.Interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", p.Interval)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		task(ctx)

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
