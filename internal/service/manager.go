package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/process"
)

// Manager is the service control facade. Every operation re-resolves
// the service by its id, nothing is cached between calls. A nil error
// is SUCCESS (RUNNING for Query), otherwise the error wraps one of the
// model sentinels: ErrBadParameter, ErrExists, ErrNotFound,
// ErrNotInitialized, ErrTimedOut, ErrFailure or ErrNotSupported.
type Manager interface {
	Install(ctx context.Context, d model.ServiceDescriptor) error
	Uninstall(ctx context.Context, d model.ServiceDescriptor) error
	Start(ctx context.Context, d model.ServiceDescriptor) error
	Stop(ctx context.Context, d model.ServiceDescriptor) error
	Restart(ctx context.Context, d model.ServiceDescriptor) error
	Query(ctx context.Context, d model.ServiceDescriptor) error
}

// NewManager returns the strategy for backend; "auto" picks the native
// control plane of the platform the binary was built for.
func NewManager(backend string, exec process.Executor, clk clock.Clock) (Manager, error) {
	if backend == "" || backend == model.BackendAuto {
		backend = defaultBackend
	}
	switch backend {
	case model.BackendSystemctl:
		return NewSystemctl(exec, clk), nil
	case model.BackendDBus:
		return NewSystemdDBus(clk), nil
	case model.BackendAndroid:
		return NewAndroid(exec, clk), nil
	case model.BackendSCM:
		return NewSCM(clk), nil
	case model.BackendNone:
		return Unsupported{}, nil
	default:
		return nil, fmt.Errorf("unknown service backend %q: %w", backend, model.ErrBadParameter)
	}
}

// shell runs the control commands of the command-driven strategies.
type shell struct {
	exec  process.Executor
	clock clock.Clock
}

// capture size for commands whose output is parsed
const outputCapacity = 16 * 1024

// run executes line as a privileged blocking command bounded by timeout
// and returns its exit code and, when capture is set, its stdout.
func (s shell) run(ctx context.Context, line string, timeout time.Duration, capture bool) (int, string, error) {
	var out *model.Sink
	if capture {
		out = model.NewBuffer(outputCapacity)
	}
	res, err := s.exec.Run(ctx, model.RunRequest{
		Command:    line,
		Block:      true,
		Privileged: true,
		MaxWait:    timeout,
		Stdout:     out,
	})
	switch {
	case errors.Is(err, model.ErrTimedOut):
		return -1, "", fmt.Errorf("%s: %w", line, model.ErrTimedOut)
	case err != nil:
		return -1, "", fmt.Errorf("%s: %v: %w", line, err, model.ErrFailure)
	}
	slog.DebugContext(ctx, "service command finished", "command", line, "return_code", res.ReturnCode)
	return res.ReturnCode, out.String(), nil
}

// budget splits one operation timeout across several commands.
type budget struct {
	clock   clock.Clock
	start   time.Time
	timeout time.Duration
}

func (s shell) budget(timeout time.Duration) budget {
	return budget{clock: s.clock, start: s.clock.Now(), timeout: timeout}
}

// left returns the time remaining for the next command, 0 if unbounded.
func (b budget) left(what string) (time.Duration, error) {
	left, ok := clock.Remaining(b.clock, b.start, b.timeout)
	if !ok {
		return 0, fmt.Errorf("%s: budget of %s exhausted: %w", what, b.timeout, model.ErrTimedOut)
	}
	return left, nil
}
