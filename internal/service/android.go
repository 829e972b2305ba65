package service

import (
	"bufio"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/process"
)

// Android controls init services with start/stop and finds their
// processes through `ps | grep <executable>`.
type Android struct {
	sh shell
}

func NewAndroid(exec process.Executor, clk clock.Clock) *Android {
	return &Android{sh: shell{exec: exec, clock: clk}}
}

func (a *Android) Install(_ context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("android install: %w", model.ErrNotSupported)
}

func (a *Android) Uninstall(_ context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("android uninstall: %w", model.ErrNotSupported)
}

func (a *Android) Start(ctx context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return a.check(ctx, "start "+command.Quote(d.ID), d.Timeout)
}

func (a *Android) Stop(ctx context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b := a.sh.budget(d.Timeout)
	_, found, err := a.find(ctx, d)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("android service %s: no process: %w", d.ID, model.ErrNotFound)
	}
	left, err := b.left("stop")
	if err != nil {
		return err
	}
	return a.check(ctx, "stop "+command.Quote(d.ID), left)
}

// Restart starts an absent service and kills a present one, init is
// expected to bring a killed service back.
func (a *Android) Restart(ctx context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b := a.sh.budget(d.Timeout)
	pid, found, err := a.find(ctx, d)
	if err != nil {
		return err
	}
	left, err := b.left("restart")
	if err != nil {
		return err
	}
	if !found {
		return a.check(ctx, "start "+command.Quote(d.ID), left)
	}
	return a.check(ctx, "kill -9 "+strconv.Itoa(pid), left)
}

func (a *Android) Query(ctx context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	_, found, err := a.find(ctx, d)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("android service %s: no process: %w", d.ID, model.ErrNotInitialized)
	}
	return nil
}

// find looks for the executable in the process list.
func (a *Android) find(ctx context.Context, d model.ServiceDescriptor) (int, bool, error) {
	exe := d.ExecutableOrID()
	line := "ps | grep " + command.Quote(exe)
	code, out, err := a.sh.run(ctx, line, d.Timeout, true)
	if err != nil {
		return 0, false, err
	}
	switch {
	case code == 1:
		return 0, false, nil
	case code != 0:
		return 0, false, fmt.Errorf("%s: exit %d: %w", line, code, model.ErrFailure)
	}
	return findProcess(out, exe)
}

func (a *Android) check(ctx context.Context, line string, timeout time.Duration) error {
	code, _, err := a.sh.run(ctx, line, timeout, false)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s: exit %d: %w", line, code, model.ErrFailure)
	}
	return nil
}

// findProcess scans ps output for a line whose command is exe. The
// grep itself and partial matches are ignored.
func findProcess(out, exe string) (int, bool, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "grep") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		if name != exe && path.Base(name) != path.Base(exe) {
			continue
		}
		pid, err := parsePID(line)
		if err != nil {
			return 0, false, err
		}
		return pid, true, nil
	}
	return 0, false, nil
}

// parsePID returns the first run of digits after the first space, the
// PID column of toolbox and toybox ps alike.
func parsePID(line string) (int, error) {
	_, rest, ok := strings.Cut(line, " ")
	if !ok {
		return 0, fmt.Errorf("no pid in %q: %w", line, model.ErrFailure)
	}
	start := strings.IndexFunc(rest, isDigit)
	if start < 0 {
		return 0, fmt.Errorf("no pid in %q: %w", line, model.ErrFailure)
	}
	rest = rest[start:]
	end := strings.IndexFunc(rest, func(r rune) bool { return !isDigit(r) })
	if end >= 0 {
		rest = rest[:end]
	}
	pid, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("parsing pid in %q: %v: %w", line, err, model.ErrFailure)
	}
	return pid, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
