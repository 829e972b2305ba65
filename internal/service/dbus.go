package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/model"
)

// unitConn is the part of *dbus.Conn the strategy uses.
type unitConn interface {
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]any, error)
	Close()
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

// SystemdDBus talks to systemd over the system bus instead of spawning
// systemctl. A new connection is opened for every operation.
type SystemdDBus struct {
	connect func(ctx context.Context) (unitConn, error)
	clock   clock.Clock
}

func NewSystemdDBus(clk clock.Clock) *SystemdDBus {
	return &SystemdDBus{
		connect: func(ctx context.Context) (unitConn, error) {
			return dbus.NewWithContext(ctx)
		},
		clock: clk,
	}
}

func unitName(id string) string {
	if strings.Contains(id, ".") {
		return id
	}
	return id + ".service"
}

func (s *SystemdDBus) Install(_ context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("systemd install: %w", model.ErrNotSupported)
}

func (s *SystemdDBus) Uninstall(_ context.Context, d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("systemd uninstall: %w", model.ErrNotSupported)
}

func (s *SystemdDBus) Start(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withConn(ctx, d, func(ctx context.Context, conn unitConn) error {
		return s.job(ctx, d, "start", conn.StartUnitContext)
	})
}

func (s *SystemdDBus) Restart(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withConn(ctx, d, func(ctx context.Context, conn unitConn) error {
		return s.job(ctx, d, "restart", conn.RestartUnitContext)
	})
}

// Stop returns NOT_FOUND for a unit that is inactive or failed and
// submits no stop job then. Transitional states count as running.
func (s *SystemdDBus) Stop(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withConn(ctx, d, func(ctx context.Context, conn unitConn) error {
		active, err := activeState(ctx, conn, d.ID)
		if err != nil {
			return err
		}
		switch active {
		case "inactive", "failed":
			return fmt.Errorf("systemd unit %s is %s: %w", d.ID, active, model.ErrNotFound)
		}
		return s.job(ctx, d, "stop", conn.StopUnitContext)
	})
}

func (s *SystemdDBus) Query(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withConn(ctx, d, func(ctx context.Context, conn unitConn) error {
		active, err := activeState(ctx, conn, d.ID)
		if err != nil {
			return err
		}
		switch active {
		case "active":
			return nil
		case "failed":
			return fmt.Errorf("systemd unit %s: %w", d.ID, model.ErrFailure)
		default:
			return fmt.Errorf("systemd unit %s is %s: %w", d.ID, active, model.ErrNotInitialized)
		}
	})
}

func (s *SystemdDBus) withConn(ctx context.Context, d model.ServiceDescriptor, fn func(context.Context, unitConn) error) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("connecting to systemd: %v: %w", err, model.ErrFailure)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// job submits a unit job and waits for its result, bounded by the
// descriptor timeout.
func (s *SystemdDBus) job(ctx context.Context, d model.ServiceDescriptor, verb string, submit jobFunc) error {
	name := unitName(d.ID)
	ch := make(chan string, 1)
	id, err := submit(ctx, name, "replace", ch)
	if err != nil {
		return fmt.Errorf("systemd %s %s: %v: %w", verb, name, err, model.ErrFailure)
	}
	slog.DebugContext(ctx, "systemd job submitted", "unit", name, "verb", verb, "job_id", id)

	var timeout <-chan time.Time
	if d.Timeout > 0 {
		timeout = s.clock.After(d.Timeout)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("systemd %s %s: job %s: %w", verb, name, result, model.ErrFailure)
		}
		return nil
	case <-timeout:
		return fmt.Errorf("systemd %s %s: %w", verb, name, model.ErrTimedOut)
	case <-ctx.Done():
		return fmt.Errorf("systemd %s %s: %w: %w", verb, name, model.ErrTimedOut, ctx.Err())
	}
}

// activeState loads the unit and returns its ActiveState. A unit
// systemd cannot load is NOT_FOUND.
func activeState(ctx context.Context, conn unitConn, id string) (string, error) {
	name := unitName(id)
	props, err := conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		return "", fmt.Errorf("reading %s properties: %v: %w", name, err, model.ErrFailure)
	}
	if load, _ := props["LoadState"].(string); load == "not-found" || load == "" {
		return "", fmt.Errorf("systemd unit %s: load state %q: %w", name, load, model.ErrNotFound)
	}
	active, _ := props["ActiveState"].(string)
	return active, nil
}
