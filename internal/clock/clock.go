// Package clock is the time source of every timeout loop in this module.
// Real is backed by package time; Fake is advanced by hand in tests.
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
	Since(start time.Time) time.Duration
	After(d time.Duration) <-chan time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() then.
	Sleep(ctx context.Context, d time.Duration) error
}

// Remaining returns how much of timeout is left since start. A zero
// timeout means unbounded and returns 0 as well, callers must check
// for it. An exhausted budget returns a negative-free 0 and false.
func Remaining(c Clock, start time.Time, timeout time.Duration) (time.Duration, bool) {
	if timeout == 0 {
		return 0, true
	}
	left := timeout - c.Since(start)
	if left <= 0 {
		return 0, false
	}
	return left, true
}

type Real struct{}

func (Real) Now() time.Time                         { return time.Now() }
func (Real) Since(start time.Time) time.Duration    { return time.Since(start) }
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
