//go:build !windows

package daemon

import "syscall"

// processAlive reports whether the process exists. Signal 0 tests for
// existence without sending a signal.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
