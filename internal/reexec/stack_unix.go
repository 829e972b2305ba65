//go:build unix

package reexec

import "golang.org/x/sys/unix"

func setStackLimit(size uint64) error {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &lim); err != nil {
		return err
	}
	lim.Cur = size
	if lim.Max != unix.RLIM_INFINITY && lim.Cur > lim.Max {
		lim.Cur = lim.Max
	}
	return unix.Setrlimit(unix.RLIMIT_STACK, &lim)
}
