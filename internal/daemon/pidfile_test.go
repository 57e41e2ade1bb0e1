package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_AcquireAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_AcquireRefusedWhileHolderAlive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	// The current process plays the live holder.
	require.NoError(t, pf.Acquire())

	err := NewPIDFile(path).Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestPIDFile_AcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	// A very high PID that almost certainly doesn't exist.
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	pf := NewPIDFile(path)
	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Read_MissingFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	_, err := pf.Read()
	assert.Error(t, err)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n"), 0o644))

	pf := NewPIDFile(path)
	_, err := pf.Read()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID file content")
}

func TestPIDFile_Release(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire())
	require.NoError(t, pf.Release())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Releasing again is a no-op.
	assert.NoError(t, pf.Release())
}

func TestPIDFile_IsRunning_CurrentProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	pid, running := pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_IsRunning_DeadProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	pid, running := pf.IsRunning()
	assert.Equal(t, 999999, pid)
	assert.False(t, running)
}

func TestPIDFile_IsRunning_NoFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	pid, running := pf.IsRunning()
	assert.Equal(t, 0, pid)
	assert.False(t, running)
}
