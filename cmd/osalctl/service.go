package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/log"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/service"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "service controls OS services through the native service manager",
}

type opFunc func(context.Context, model.ServiceDescriptor) error

func init() {
	ops := []struct {
		use   string
		short string
		op    func(m service.Manager) opFunc
	}{
		{"install", "register a service", func(m service.Manager) opFunc { return m.Install }},
		{"uninstall", "remove a service", func(m service.Manager) opFunc { return m.Uninstall }},
		{"start", "start a service", func(m service.Manager) opFunc { return m.Start }},
		{"stop", "stop a running service", func(m service.Manager) opFunc { return m.Stop }},
		{"restart", "restart a service", func(m service.Manager) opFunc { return m.Restart }},
		{"query", "report whether a service runs", func(m service.Manager) opFunc { return m.Query }},
	}
	for _, o := range ops {
		c := &cobra.Command{
			Use:   o.use + " <id>",
			Short: o.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return doService(cmd, o.use, args[0], o.op)
			},
		}
		f := c.Flags()
		f.String("exe", "", "service executable, defaults to the id")
		f.Duration("timeout", 0, "operation timeout, defaults to service.timeout")
		if o.use == "install" {
			f.String("args", "", "arguments passed to the service")
			f.String("name", "", "display name")
			f.String("description", "", "description")
			f.String("deps", "", "semicolon-separated services this one depends on")
		}
		serviceCmd.AddCommand(c)
	}
}

func doService(cmd *cobra.Command, verb, id string, op func(service.Manager) opFunc) error {
	attrs := slog.Group("osalctl",
		slog.String("cmd", "service "+verb),
		slog.String("id", id),
		slog.Int("pid", os.Getpid()),
	)
	ctx, _ := log.WithInvocation(log.ContextAttrs(cmd.Context(), attrs))

	_, invoker, err := executor()
	if err != nil {
		return err
	}
	manager, err := service.NewManager(config.Service.Backend, invoker, clock.Real{})
	if err != nil {
		return err
	}
	d, err := descriptor(id)
	if err != nil {
		return err
	}

	err = op(manager)(ctx, d)
	status := model.StatusOf(err)
	name := status.String()
	if verb == "query" && err == nil {
		name = "RUNNING"
	}
	return report(ctx, status, name, err)
}

func descriptor(id string) (model.ServiceDescriptor, error) {
	_, _, timeout, err := config.Durations()
	if err != nil {
		return model.ServiceDescriptor{}, err
	}
	if t := flags.GetDuration("timeout"); t > 0 {
		timeout = t
	}
	return model.ServiceDescriptor{
		ID:           id,
		Executable:   flags.GetString("exe"),
		Args:         flags.GetString("args"),
		Name:         flags.GetString("name"),
		Description:  flags.GetString("description"),
		Dependencies: flags.GetString("deps"),
		Timeout:      timeout,
	}, nil
}
