package process

import "golang.org/x/sys/unix"

// The raw getpriority syscall on Linux returns 20-nice.
func currentNice() (int, error) {
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return 0, err
	}
	return 20 - raw, nil
}
