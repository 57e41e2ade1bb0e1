package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamped_InvalidValues(t *testing.T) {
	s := Settings{
		CommitInterval: 0,
		AuthMethod:     "kerberos",
		LastSync:       "",
		CommitMessage:  "",
		LogMaxEntries:  -3,
	}

	c := s.Clamped()
	assert.Equal(t, DefaultCommitInterval, c.CommitInterval)
	assert.Equal(t, "ssh", c.AuthMethod)
	assert.Equal(t, LastSyncNever, c.LastSync)
	assert.Equal(t, DefaultCommitMessage, c.CommitMessage)
	assert.Equal(t, DefaultLogMaxEntries, c.LogMaxEntries)
}

func TestClamped_ValidValuesUntouched(t *testing.T) {
	s := Settings{
		CommitInterval: 5,
		RepoURL:        "git@example.com:me/vault.git",
		AuthMethod:     "https",
		AutoSync:       true,
		LastSync:       "2025-06-01 10:00:00",
		CommitMessage:  "checkpoint {{date}}",
		LogMaxEntries:  10,
	}
	assert.Equal(t, s, s.Clamped())
}

func TestFileStore_LoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestFileStore_SaveThenLoadRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))

	s := Default()
	s.RepoURL = "git@example.com:me/vault.git"
	s.CommitInterval = 30
	s.LastSync = "2025-06-01 10:00:00"
	require.NoError(t, store.Save(s))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestFileStore_LoadPartialFilePicksUpDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repo_url: git@example.com:me/vault.git\n"), 0644))

	s, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "git@example.com:me/vault.git", s.RepoURL)
	assert.Equal(t, DefaultCommitInterval, s.CommitInterval)
	assert.Equal(t, DefaultCommitMessage, s.CommitMessage)
	assert.Equal(t, LastSyncNever, s.LastSync)
}

func TestFileStore_LoadClampsInvalidFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commit_interval: -2\nlog_max_entries: 0\nauth_method: bogus\n"), 0644))

	s, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultCommitInterval, s.CommitInterval)
	assert.Equal(t, DefaultLogMaxEntries, s.LogMaxEntries)
	assert.Equal(t, "ssh", s.AuthMethod)
}

func TestFileStore_ObserverNotifiedAfterSave(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))

	var seen []Settings
	store.OnChange(func(s Settings) { seen = append(seen, s) })

	s := Default()
	s.CommitInterval = 45
	require.NoError(t, store.Save(s))

	require.Len(t, seen, 1)
	assert.Equal(t, 45, seen[0].CommitInterval)
}

func TestFileStore_SaveClampsBeforePersist(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))

	s := Default()
	s.CommitInterval = 0
	require.NoError(t, store.Save(s))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultCommitInterval, got.CommitInterval)
}
