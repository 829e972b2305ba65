//go:build !unix && !windows

package process

import (
	"os"
	"syscall"

	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/model"
)

func sysProcAttr(command.Invocation, model.RunRequest) *syscall.SysProcAttr {
	return nil
}

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

func setPriority(int, int) error {
	return nil
}
