package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/process"
)

// Systemctl drives systemd through `systemctl <verb> <id>` commands run
// with privilege escalation.
type Systemctl struct {
	sh shell
}

func NewSystemctl(exec process.Executor, clk clock.Clock) *Systemctl {
	return &Systemctl{sh: shell{exec: exec, clock: clk}}
}

func systemctl(verb, id string) string {
	return "systemctl " + verb + " " + command.Quote(id)
}

// Install is not supported, unit files are not managed.
func (s *Systemctl) Install(_ context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("systemd install: %w", model.ErrNotSupported)
}

func (s *Systemctl) Uninstall(_ context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("systemd uninstall: %w", model.ErrNotSupported)
}

func (s *Systemctl) Start(ctx context.Context, d model.ServiceDescriptor) error {
	return s.verb(ctx, d, "start")
}

func (s *Systemctl) Restart(ctx context.Context, d model.ServiceDescriptor) error {
	return s.verb(ctx, d, "restart")
}

// Stop checks `systemctl status` first; a unit reported as not running
// is NOT_FOUND and no stop command is issued.
func (s *Systemctl) Stop(ctx context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b := s.sh.budget(d.Timeout)
	code, _, err := s.sh.run(ctx, systemctl("status", d.ID), d.Timeout, false)
	if err != nil {
		return err
	}
	if code != 0 {
		slog.DebugContext(ctx, "unit not running: skipping stop", "id", d.ID, "return_code", code)
		return fmt.Errorf("systemd unit %s: status exit %d: %w", d.ID, code, model.ErrNotFound)
	}
	left, err := b.left("systemctl stop")
	if err != nil {
		return err
	}
	return s.check(ctx, systemctl("stop", d.ID), left)
}

// Query runs show, is-active and is-failed in turn, sharing one
// timeout budget.
func (s *Systemctl) Query(ctx context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b := s.sh.budget(d.Timeout)
	steps := []struct {
		verb     string
		failWhen func(code int) bool
		status   error
	}{
		{"show", nonZero, model.ErrNotFound},
		{"is-active", nonZero, model.ErrNotInitialized},
		{"is-failed", zero, model.ErrFailure},
	}
	for _, p := range steps {
		left, err := b.left("systemctl " + p.verb)
		if err != nil {
			return err
		}
		code, _, err := s.sh.run(ctx, systemctl(p.verb, d.ID), left, false)
		if err != nil {
			return err
		}
		if p.failWhen(code) {
			return fmt.Errorf("systemd unit %s: %s exit %d: %w", d.ID, p.verb, code, p.status)
		}
	}
	return nil
}

func (s *Systemctl) verb(ctx context.Context, d model.ServiceDescriptor, verb string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.check(ctx, systemctl(verb, d.ID), d.Timeout)
}

// check runs line and maps a non-zero exit to FAILURE.
func (s *Systemctl) check(ctx context.Context, line string, timeout time.Duration) error {
	code, _, err := s.sh.run(ctx, line, timeout, false)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s: exit %d: %w", line, code, model.ErrFailure)
	}
	return nil
}

func nonZero(code int) bool { return code != 0 }
func zero(code int) bool    { return code == 0 }
