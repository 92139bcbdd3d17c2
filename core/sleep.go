package core

import (
	"context"
	"fmt"
	"time"
)

// Sleep blocks for d or until ctx is done, whichever comes first.
//
// The calling goroutine parks on a runtime timer, so under goroutine-per-task
// execution a sleeping task does not hold an OS thread. A cancelled ctx yields
// an error wrapping ErrInterrupted and the context cause.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}
}
