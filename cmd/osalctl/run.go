package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/osal/internal/log"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/process"
)

const defaultCapture = 64 * 1024

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command line>",
	Short: "run executes a command line through the configured shell",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doRun,
}

func init() {
	f := runCmd.Flags()
	f.Bool("wait", false, "wait for the command and capture its output")
	f.Duration("timeout", 0, "maximum wait, 0 waits forever; requires --wait")
	f.Bool("sudo", false, "run with the configured privilege prefix")
	f.Int("nice", 0, "priority delta of the child")
	f.Uint64("stack", 0, "stack size limit of the child in bytes")
	f.Int("stdout-cap", defaultCapture, "bytes of stdout kept")
	f.Int("stderr-cap", defaultCapture, "bytes of stderr kept")
	f.String("func", "", "run a built-in function in a new process instead of a command line")
}

// executor returns the Invoker, guarded by the allowlist when one is
// configured.
func executor() (process.Executor, *process.Invoker, error) {
	invoker, err := process.FromConfig(config)
	if err != nil {
		return nil, nil, err
	}
	if len(config.Run.Allowlist) > 0 {
		return process.NewAllowlist(invoker, config.Run.Allowlist), invoker, nil
	}
	return invoker, invoker, nil
}

func doRun(cmd *cobra.Command, args []string) error {
	attrs := slog.Group("osalctl",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx := log.ContextAttrs(cmd.Context(), attrs)

	exec, _, err := executor()
	if err != nil {
		return err
	}

	req := model.RunRequest{
		Block:      flags.GetBool("wait"),
		Privileged: flags.GetBool("sudo"),
		Priority:   flags.GetInt("nice"),
		StackSize:  flags.GetUint64("stack"),
		MaxWait:    flags.GetDuration("timeout"),
	}
	if fn := flags.GetString("func"); fn != "" {
		req.Func = fn
		req.Args = args
	} else {
		req.Command = strings.Join(args, " ")
	}
	if req.Block {
		stdoutCap, stderrCap := flags.GetInt("stdout-cap"), flags.GetInt("stderr-cap")
		if stdoutCap < 0 || stderrCap < 0 {
			err := fmt.Errorf("negative capture size %d/%d: %w", stdoutCap, stderrCap, model.ErrBadParameter)
			return report(ctx, model.StatusBadParameter, model.StatusBadParameter.String(), err)
		}
		req.Stdout = model.NewBuffer(stdoutCap + 1)
		req.Stderr = model.NewBuffer(stderrCap + 1)
	}

	res, err := exec.Run(ctx, req)
	if req.Block {
		_, _ = fmt.Fprint(os.Stdout, req.Stdout.String())
		_, _ = fmt.Fprint(os.Stderr, req.Stderr.String())
	}
	name := res.Status.String()
	switch res.Status {
	case model.StatusSuccess:
		name = fmt.Sprintf("%s return_code=%d", name, res.ReturnCode)
	case model.StatusInvoked:
		name = fmt.Sprintf("%s pid=%d", name, res.PID)
	}
	return report(ctx, res.Status, name, err)
}
