package process

import (
	"os"
	"syscall"

	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/model"
	"golang.org/x/sys/windows"
)

// sysProcAttr launches the child detached from the console, with the raw
// command line composed for COMSPEC and a priority class derived from
// the nice delta.
func sysProcAttr(inv command.Invocation, req model.RunRequest) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CmdLine:       inv.CmdLine,
		CreationFlags: windows.DETACHED_PROCESS | priorityClass(req.Priority),
		HideWindow:    true,
	}
}

func priorityClass(delta int) uint32 {
	switch {
	case delta <= -10:
		return windows.HIGH_PRIORITY_CLASS
	case delta < 0:
		return windows.ABOVE_NORMAL_PRIORITY_CLASS
	case delta == 0:
		return 0
	case delta < 10:
		return windows.BELOW_NORMAL_PRIORITY_CLASS
	default:
		return windows.IDLE_PRIORITY_CLASS
	}
}

// terminate is TerminateProcess; there is no gentler signal for a
// detached process.
func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}

func returnCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}

// The priority class is set at creation.
func setPriority(int, int) error {
	return nil
}
