// Package daemon enforces one watch daemon per vault through a PID file.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile guards against two watch daemons syncing the same vault.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Acquire records the current process as the vault's daemon. It fails
// when another live process already holds the file; a stale file left by
// a crashed daemon is replaced silently.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running {
		return fmt.Errorf("another watch daemon is already running (pid %d)", pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Release removes the PID file. Safe to call when the file is gone.
func (p *PIDFile) Release() error {
	err := os.Remove(p.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// IsRunning checks if the PID file exists and the process is alive.
// Returns the PID and whether the process is running.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}
