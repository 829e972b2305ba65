package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/log"
	"github.com/CZERTAINLY/osal/internal/model"
)

// Executor runs one request. Invoker and Allowlist implement it, the
// service control strategies consume it.
type Executor interface {
	Run(ctx context.Context, req model.RunRequest) (model.RunResult, error)
}

type Invoker struct {
	composer   command.Composer
	clock      clock.Clock
	killGrace  time.Duration
	drainDelay time.Duration
}

type Option func(*Invoker)

func WithClock(c clock.Clock) Option {
	return func(i *Invoker) { i.clock = c }
}

// WithKillGrace sets how long a terminated child may take before it is killed.
func WithKillGrace(d time.Duration) Option {
	return func(i *Invoker) { i.killGrace = d }
}

// WithDrainDelay bounds how long output is read after the child exited.
func WithDrainDelay(d time.Duration) Option {
	return func(i *Invoker) { i.drainDelay = d }
}

func New(composer command.Composer, opts ...Option) *Invoker {
	i := &Invoker{
		composer:   composer,
		clock:      clock.Real{},
		killGrace:  model.DefaultKillGrace,
		drainDelay: model.DefaultDrainDelay,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// FromConfig returns an Invoker configured by the run section.
func FromConfig(cfg model.Config) (*Invoker, error) {
	killGrace, drainDelay, _, err := cfg.Durations()
	if err != nil {
		return nil, err
	}
	return New(command.New(cfg.Run), WithKillGrace(killGrace), WithDrainDelay(drainDelay)), nil
}

// Run executes req. The error is nil for SUCCESS and INVOKED and wraps
// the sentinel of result.Status otherwise. A non-zero exit code is not
// an error, callers inspect ReturnCode.
func (i *Invoker) Run(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	ctx, _ = log.WithInvocation(ctx)
	var res model.RunResult

	inv, err := i.composer.Compose(req)
	if err != nil {
		res.Status = model.StatusOf(err)
		return res, err
	}
	res.Path = inv.Path
	res.Args = inv.Args

	ch, err := openChannel(req)
	if err != nil {
		res.Status = model.StatusIOError
		return res, fmt.Errorf("creating output pipes: %w: %w", err, model.ErrIO)
	}
	defer ch.Close()

	cmd := exec.Command(inv.Path, inv.Args...)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	ch.attach(cmd)
	cmd.SysProcAttr = sysProcAttr(inv, req)

	res.Started = i.clock.Now()
	if err := cmd.Start(); err != nil {
		res.Stopped = i.clock.Now()
		res.Status = model.StatusNotExecutable
		return res, fmt.Errorf("starting %s: %w: %w", inv.Path, err, model.ErrNotExecutable)
	}
	ch.closeWriteEnds()
	res.PID = cmd.Process.Pid
	ctx = log.ContextAttrs(ctx, slog.Int("pid", res.PID))
	slog.DebugContext(ctx, "process spawned", "path", inv.Path, "args", inv.Args, "block", req.Block)

	if req.Priority != 0 {
		if err := setPriority(cmd.Process.Pid, req.Priority); err != nil {
			slog.WarnContext(ctx, "applying priority failed", "priority", req.Priority, "error", err)
		}
	}

	if !req.Block {
		go func() {
			err := cmd.Wait()
			slog.DebugContext(ctx, "detached process reaped", "error", err)
		}()
		res.Status = model.StatusInvoked
		return res, nil
	}

	ch.drain(ctx)
	timedOut, cause := i.supervise(ctx, cmd, req.MaxWait)
	res.Stopped = i.clock.Now()
	res.Stdout, res.Stderr = ch.finish(ctx, i.clock, i.drainDelay)

	if timedOut {
		res.Status = model.StatusTimedOut
		res.ReturnCode = -1
		if errors.Is(cause, model.ErrTimedOut) {
			return res, fmt.Errorf("%s: no exit within %s: %w", inv.Path, req.MaxWait, model.ErrTimedOut)
		}
		return res, fmt.Errorf("%s: %w: %w", inv.Path, cause, model.ErrTimedOut)
	}
	res.Status = model.StatusSuccess
	res.ReturnCode = returnCode(cmd.ProcessState)
	slog.DebugContext(ctx, "process exited", "return_code", res.ReturnCode, "elapsed", res.Stopped.Sub(res.Started))
	return res, nil
}
