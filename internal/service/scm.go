package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/model"
)

type scmState int

const (
	scmStopped scmState = iota + 1
	scmStartPending
	scmStopPending
	scmRunning
	scmContinuePending
	scmPausePending
	scmPaused
)

type scmStatus struct {
	State    scmState
	WaitHint time.Duration
}

// scmService and scmManager hide golang.org/x/sys/windows/svc/mgr so
// the control logic builds and runs everywhere.
type scmService interface {
	Start(args ...string) error
	Stop() (scmStatus, error)
	Query() (scmStatus, error)
	Delete() error
	Close() error
}

type scmManager interface {
	// Open returns an error wrapping model.ErrNotFound for a missing service.
	Open(id string) (scmService, error)
	// Create returns an error wrapping model.ErrExists for a duplicate.
	Create(d model.ServiceDescriptor) (scmService, error)
	Disconnect() error
}

const (
	minPoll = time.Second
	maxPoll = 10 * time.Second
)

// SCM drives the Windows Service Control Manager.
type SCM struct {
	connect func() (scmManager, error)
	clock   clock.Clock
}

func NewSCM(clk clock.Clock) *SCM {
	return &SCM{connect: connectSCM, clock: clk}
}

func (s *SCM) Install(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withManager(d, func(m scmManager) error {
		svc, err := m.Create(d)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "service installed", "id", d.ID, "executable", d.ExecutableOrID())
		return svc.Close()
	})
}

func (s *SCM) Uninstall(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withService(d, func(svc scmService) error {
		if err := svc.Delete(); err != nil {
			return fmt.Errorf("deleting %s: %v: %w", d.ID, err, model.ErrFailure)
		}
		slog.InfoContext(ctx, "service uninstalled", "id", d.ID)
		return nil
	})
}

func (s *SCM) Start(_ context.Context, d model.ServiceDescriptor) error {
	return s.withService(d, func(svc scmService) error {
		if err := svc.Start(); err != nil {
			return fmt.Errorf("starting %s: %v: %w", d.ID, err, model.ErrFailure)
		}
		return nil
	})
}

func (s *SCM) Stop(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withService(d, func(svc scmService) error {
		return s.stop(ctx, d, svc)
	})
}

// Restart stops the service, waits for it to report stopped and
// starts it again.
func (s *SCM) Restart(ctx context.Context, d model.ServiceDescriptor) error {
	return s.withService(d, func(svc scmService) error {
		if err := s.stop(ctx, d, svc); err != nil {
			return err
		}
		if err := svc.Start(); err != nil {
			return fmt.Errorf("starting %s: %v: %w", d.ID, err, model.ErrFailure)
		}
		return nil
	})
}

func (s *SCM) Query(_ context.Context, d model.ServiceDescriptor) error {
	return s.withService(d, func(svc scmService) error {
		st, err := svc.Query()
		if err != nil {
			return fmt.Errorf("querying %s: %v: %w", d.ID, err, model.ErrFailure)
		}
		if st.State != scmRunning {
			return fmt.Errorf("service %s in state %d: %w", d.ID, st.State, model.ErrNotInitialized)
		}
		return nil
	})
}

// stop sends the stop control unless the service is already stopped
// and polls until it is, bounded by the descriptor timeout.
func (s *SCM) stop(ctx context.Context, d model.ServiceDescriptor, svc scmService) error {
	start := s.clock.Now()
	st, err := svc.Query()
	if err != nil {
		return fmt.Errorf("querying %s: %v: %w", d.ID, err, model.ErrFailure)
	}
	if st.State != scmStopped && st.State != scmStopPending {
		st, err = svc.Stop()
		if err != nil {
			return fmt.Errorf("stopping %s: %v: %w", d.ID, err, model.ErrFailure)
		}
	}
	for st.State != scmStopped {
		left, ok := clock.Remaining(s.clock, start, d.Timeout)
		if !ok {
			return fmt.Errorf("waiting for %s to stop: %w", d.ID, model.ErrTimedOut)
		}
		wait := pollInterval(st.WaitHint)
		if d.Timeout > 0 {
			wait = min(wait, left)
		}
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("waiting for %s to stop: %w: %w", d.ID, model.ErrTimedOut, err)
		}
		st, err = svc.Query()
		if err != nil {
			return fmt.Errorf("querying %s: %v: %w", d.ID, err, model.ErrFailure)
		}
	}
	return nil
}

// pollInterval is a tenth of the wait hint kept within 1 and 10 seconds.
func pollInterval(hint time.Duration) time.Duration {
	return min(max(hint/10, minPoll), maxPoll)
}

func (s *SCM) withManager(d model.ServiceDescriptor, fn func(scmManager) error) error {
	if err := d.Validate(); err != nil {
		return err
	}
	m, err := s.connect()
	if err != nil {
		if errors.Is(err, model.ErrNotSupported) {
			return err
		}
		return fmt.Errorf("connecting to service manager: %v: %w", err, model.ErrFailure)
	}
	defer func() {
		_ = m.Disconnect()
	}()
	return fn(m)
}

func (s *SCM) withService(d model.ServiceDescriptor, fn func(scmService) error) error {
	return s.withManager(d, func(m scmManager) error {
		svc, err := m.Open(d.ID)
		if err != nil {
			return err
		}
		defer func() {
			_ = svc.Close()
		}()
		return fn(svc)
	})
}
