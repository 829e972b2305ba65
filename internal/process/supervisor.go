package process

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/CZERTAINLY/osal/internal/model"
)

// supervise waits for cmd to exit. It returns timedOut when the child
// had to be terminated, either because maxWait elapsed or because ctx
// was done; cause tells which. The child is always reaped on return.
func (i *Invoker) supervise(ctx context.Context, cmd *exec.Cmd, maxWait time.Duration) (timedOut bool, cause error) {
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if maxWait > 0 {
		deadline = i.clock.After(maxWait)
	}
	return i.await(ctx, cmd.Process, done, deadline)
}

func (i *Invoker) await(ctx context.Context, proc *os.Process, done <-chan error, deadline <-chan time.Time) (timedOut bool, cause error) {
	select {
	case <-done:
		return false, nil
	case <-deadline:
		cause = model.ErrTimedOut
	case <-ctx.Done():
		cause = ctx.Err()
	}
	// an exit racing the deadline wins
	select {
	case <-done:
		return false, nil
	default:
	}

	slog.WarnContext(ctx, "terminating process", "reason", cause)
	if err := terminate(proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.WarnContext(ctx, "terminating process failed", "error", err)
	}

	select {
	case <-done:
	case <-i.clock.After(i.killGrace):
		slog.WarnContext(ctx, "process survived termination: killing", "kill_grace", i.killGrace)
		if err := kill(proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.ErrorContext(ctx, "killing process failed", "error", err)
		}
		<-done
	}
	return true, cause
}
