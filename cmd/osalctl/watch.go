package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/log"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/service"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "watch restarts the configured services when they stop running",
	RunE:  doWatch,
}

func doWatch(cmd *cobra.Command, _ []string) error {
	attrs := slog.Group("osalctl",
		slog.String("cmd", "watch"),
		slog.Int("pid", os.Getpid()),
	)
	ctx := log.ContextAttrs(cmd.Context(), attrs)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Watch == nil {
		return errors.New("watch section is missing in " + configPath)
	}
	_, invoker, err := executor()
	if err != nil {
		return err
	}
	manager, err := service.NewManager(config.Service.Backend, invoker, clock.Real{})
	if err != nil {
		return err
	}
	_, _, timeout, err := config.Durations()
	if err != nil {
		return err
	}

	watchdog, err := service.NewWatchdog(ctx, *config.Watch, timeout, manager)
	if err != nil {
		return err
	}
	go logChecks(ctx, watchdog)
	return watchdog.Do(ctx)
}

func logChecks(ctx context.Context, w *service.Watchdog) {
	for {
		select {
		case <-ctx.Done():
			return
		case checks := <-w.Checks():
			for _, c := range checks {
				if c.Restarted || c.Status != model.StatusSuccess {
					slog.InfoContext(ctx, "watchdog", "id", c.ID, "status", c.Status.String(), "restarted", c.Restarted)
				}
			}
		}
	}
}
