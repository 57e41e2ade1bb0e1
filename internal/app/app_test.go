package app

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsync/vaultsync/internal/output"
	"github.com/vaultsync/vaultsync/internal/settings"
	"github.com/vaultsync/vaultsync/internal/syncer"
)

func testOptions(t *testing.T, vault string) Options {
	t.Helper()
	state := t.TempDir()
	return Options{
		VaultPath:   vault,
		ConfigPath:  filepath.Join(state, "config.yaml"),
		JournalPath: filepath.Join(state, "journal.db"),
		UI:          &output.UI{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}},
	}
}

func TestInit_NonRepoComesUpDisabled(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	a, err := Init(context.Background(), testOptions(t, t.TempDir()))
	require.NoError(t, err, "a failed probe must not fail init")
	defer a.Shutdown()

	assert.Nil(t, a.Client)
	assert.Error(t, a.DisabledReason)
	assert.False(t, a.Orchestrator.Ready())

	// Every run in the disabled state reports a configuration error.
	assert.Equal(t, syncer.OutcomeFailed, a.Orchestrator.Run(context.Background()))

	// The scheduler refuses to start without a client.
	a.Scheduler.Start(15)
	assert.False(t, a.Scheduler.Running())
}

func TestInit_RepoComesUpReady(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	vault := t.TempDir()
	require.NoError(t, exec.Command("git", "-C", vault, "init").Run())

	a, err := Init(context.Background(), testOptions(t, vault))
	require.NoError(t, err)
	defer a.Shutdown()

	assert.NotNil(t, a.Client)
	assert.NoError(t, a.DisabledReason)
	assert.True(t, a.Orchestrator.Ready())
	assert.NotNil(t, a.Journal, "journal should open alongside the client")
}

func TestStartAutoSync_RespectsDisabledSetting(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	vault := t.TempDir()
	require.NoError(t, exec.Command("git", "-C", vault, "init").Run())

	a, err := Init(context.Background(), testOptions(t, vault))
	require.NoError(t, err)
	defer a.Shutdown()

	cfg := settings.Default()
	cfg.AutoSync = false
	require.NoError(t, a.Settings.Save(cfg))

	a.StartAutoSync()
	assert.False(t, a.Scheduler.Running())
}

func TestHandleSettingsChanged_RestartsScheduler(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	vault := t.TempDir()
	require.NoError(t, exec.Command("git", "-C", vault, "init").Run())

	a, err := Init(context.Background(), testOptions(t, vault))
	require.NoError(t, err)
	defer a.Shutdown()

	a.Scheduler.Start(15)
	require.True(t, a.Scheduler.Running())

	prev := settings.Default()
	cur := settings.Default()
	cur.CommitInterval = 30
	a.HandleSettingsChanged(prev, cur)
	assert.Equal(t, 30*time.Minute, a.Scheduler.Interval())

	// Unrelated changes leave the timer alone.
	before := a.Scheduler.Interval()
	cur2 := cur
	cur2.CommitMessage = "different {{date}}"
	a.HandleSettingsChanged(cur, cur2)
	assert.Equal(t, before, a.Scheduler.Interval())

	// Turning auto-sync off cancels the timer.
	cur3 := cur
	cur3.AutoSync = false
	a.HandleSettingsChanged(cur, cur3)
	assert.False(t, a.Scheduler.Running())
}

func TestShutdown_Idempotent(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	a, err := Init(context.Background(), testOptions(t, t.TempDir()))
	require.NoError(t, err)

	a.Shutdown()
	assert.NotPanics(t, func() { a.Shutdown() })
}
