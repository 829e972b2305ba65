//go:build unix

package process

import (
	"os"
	"syscall"

	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/model"
	"golang.org/x/sys/unix"
)

// sysProcAttr detaches the child into its own session, which also makes
// it the leader of a new process group.
func sysProcAttr(command.Invocation, model.RunRequest) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// terminate sends SIGTERM to the child's process group, so descendants
// started by the shell go down with it.
func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

func kill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if err == unix.ESRCH {
		return p.Signal(sig)
	}
	return err
}

// returnCode is the exit status, or the signal number for a child
// terminated by a signal.
func returnCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return int(ws.Signal())
	}
	return state.ExitCode()
}

// setPriority applies a nice delta relative to the parent.
func setPriority(pid, delta int) error {
	nice, err := currentNice()
	if err != nil {
		return err
	}
	return unix.Setpriority(unix.PRIO_PROCESS, pid, nice+delta)
}
