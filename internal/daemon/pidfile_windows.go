//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// processAlive reports whether the process exists. On Windows,
// os.FindProcess always succeeds, so test with a zero signal.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
