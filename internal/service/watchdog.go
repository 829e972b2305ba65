package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/parallel"
)

// services checked at once
const watchLimit = 4

// Check is the outcome of one watched service in one round.
type Check struct {
	ID        string
	Status    model.Status
	Restarted bool
	Err       error
}

// Watchdog queries the watched services on a schedule and restarts
// those that are not running.
type Watchdog struct {
	manager   Manager
	services  []model.ServiceDescriptor
	scheduler gocron.Scheduler
	checks    chan []Check
}

func NewWatchdog(ctx context.Context, cfg model.Watch, timeout time.Duration, manager Manager) (*Watchdog, error) {
	if len(cfg.Services) == 0 {
		return nil, fmt.Errorf("watch.services is empty: %w", model.ErrBadParameter)
	}
	w := &Watchdog{
		manager: manager,
		checks:  make(chan []Check, 1),
	}
	for _, s := range cfg.Services {
		d := s.Descriptor(timeout)
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("watch.services: %w", err)
		}
		w.services = append(w.services, d)
	}

	scheduler, err := newScheduler(ctx, cfg.Schedule, func() {
		w.publish(w.Check(ctx))
	})
	if err != nil {
		return nil, err
	}
	w.scheduler = scheduler
	return w, nil
}

// Checks delivers the latest round, a round nobody picked up is
// replaced by the next one.
func (w *Watchdog) Checks() <-chan []Check {
	return w.checks
}

func (w *Watchdog) publish(checks []Check) {
	select {
	case <-w.checks:
	default:
	}
	select {
	case w.checks <- checks:
	default:
	}
}

// Check runs one round over every watched service.
func (w *Watchdog) Check(ctx context.Context) []Check {
	checks := make([]Check, 0, len(w.services))
	m := parallel.NewMap(ctx, watchLimit, w.check)
	for c, err := range m.Iter(parallel.All(w.services)) {
		if err != nil {
			slog.ErrorContext(ctx, "watchdog check failed", "id", c.ID, "error", err)
		}
		checks = append(checks, c)
	}
	return checks
}

func (w *Watchdog) check(ctx context.Context, d model.ServiceDescriptor) (Check, error) {
	c := Check{ID: d.ID}
	err := w.manager.Query(ctx, d)
	c.Status = model.StatusOf(err)
	if err == nil {
		slog.DebugContext(ctx, "service running", "id", d.ID)
		return c, nil
	}
	if !errors.Is(err, model.ErrNotInitialized) && !errors.Is(err, model.ErrFailure) {
		c.Err = err
		return c, err
	}
	slog.WarnContext(ctx, "service not running: restarting", "id", d.ID, "status", c.Status.String())
	if err := w.manager.Restart(ctx, d); err != nil {
		c.Err = err
		return c, fmt.Errorf("restarting %s: %w", d.ID, err)
	}
	c.Restarted = true
	return c, nil
}

// Do starts the scheduler and blocks until ctx is done.
func (w *Watchdog) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a watchdog", "services", len(w.services))
	w.scheduler.Start()
	defer func() {
		err := w.scheduler.Shutdown()
		if err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()
	<-ctx.Done()
	return nil
}

func newScheduler(ctx context.Context, cfg model.TimerSchedule, task func()) (gocron.Scheduler, error) {
	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		interval, err := model.CronInterval(cfg.Cron, time.Now())
		if err != nil {
			return nil, fmt.Errorf("parsing watch.schedule.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron, "interval", interval.String())
	case cfg.Duration != "":
		d, err := model.ParseInterval(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing watch.schedule.duration: %w", err)
		}
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String())
		job = gocron.DurationJob(d)
	default:
		return nil, errors.New("both cron and duration are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(task),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
