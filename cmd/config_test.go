package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsync/vaultsync/internal/output"
	"github.com/vaultsync/vaultsync/internal/settings"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("vault_path", dir)
	viper.SetDefault("settings_path", filepath.Join(dir, "settings.yaml"))
	viper.SetDefault("journal_path", filepath.Join(dir, "journal.db"))
	viper.SetDefault("log_path", filepath.Join(dir, "vaultsync.log"))

	// Initialize output
	ui = &output.UI{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vaultsync configuration")
	assert.Contains(t, string(data), "vault_path")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	err := configInitRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// File unchanged
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
}

func TestConfigInit_ForceOverwrites(t *testing.T) {
	dir := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	t.Cleanup(func() { configForce = false })

	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vaultsync configuration")
}

func TestConfigSet_UpdatesSetting(t *testing.T) {
	testEnv(t)

	require.NoError(t, configSetRun("commit_interval", "30"))
	require.NoError(t, configSetRun("repo_url", "git@example.com:me/vault.git"))
	require.NoError(t, configSetRun("auto_sync", "false"))

	cfg, err := settingsStore().Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.CommitInterval)
	assert.Equal(t, "git@example.com:me/vault.git", cfg.RepoURL)
	assert.False(t, cfg.AutoSync)
}

func TestConfigSet_ClampsInvalidValues(t *testing.T) {
	testEnv(t)

	require.NoError(t, configSetRun("commit_interval", "0"))
	cfg, err := settingsStore().Load()
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultCommitInterval, cfg.CommitInterval)

	require.NoError(t, configSetRun("auth_method", "kerberos"))
	cfg, err = settingsStore().Load()
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultAuthMethod, cfg.AuthMethod)
}

func TestConfigSet_RejectsBadInput(t *testing.T) {
	testEnv(t)

	assert.Error(t, configSetRun("commit_interval", "soon"))
	assert.Error(t, configSetRun("auto_sync", "maybe"))
	assert.Error(t, configSetRun("no_such_key", "1"))
}

func TestConfigShow_ReportsSources(t *testing.T) {
	dir := testEnv(t)

	// With a file value present
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("state_dir: /custom\n"), 0644))

	fileValues := readConfigFileValues(cfgPath)
	assert.Equal(t, "(file)", detectSource("state_dir", "VAULTSYNC_STATE_DIR", fileValues))
	assert.Equal(t, "(default)", detectSource("vault_path", "VAULTSYNC_VAULT_PATH", fileValues))

	t.Setenv("VAULTSYNC_STATE_DIR", "/env")
	assert.Equal(t, "(env: VAULTSYNC_STATE_DIR)", detectSource("state_dir", "VAULTSYNC_STATE_DIR", fileValues))
}

func TestFlattenKeys_NestedMaps(t *testing.T) {
	result := make(map[string]bool)
	flattenKeys("", map[string]any{
		"top": "v",
		"nested": map[string]any{
			"inner": "v",
		},
	}, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.inner"])
	assert.False(t, result["nested"])
}

func TestConfigShow_RunsWithoutFile(t *testing.T) {
	testEnv(t)
	assert.NoError(t, configShowRun())
}
