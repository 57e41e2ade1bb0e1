package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vaultsync"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage vaultsync configuration.

Running bare 'vaultsync config' is the same as 'vaultsync config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a sync setting",
	Long: `Change a sync setting. Valid keys:

  commit_interval   minutes between automatic syncs (>= 1)
  repo_url          remote repository URL
  auth_method       ssh or https
  auto_sync         true or false
  commit_message    commit message template ({{date}} expands to the sync time)
  log_max_entries   maximum commits shown by 'vaultsync log'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetRun(args[0], args[1])
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# vaultsync configuration
# See: vaultsync config show (for effective values and sources)

# Vault directory to sync (default: current directory)
# vault_path: {{ .VaultPath }}

# State/data directory (default: ~/.config/vaultsync)
# state_dir: {{ .StateDir }}

# Sync settings file (commit interval, remote URL, message template)
# settings_path: {{ .SettingsPath }}

# Run journal database path
# journal_path: {{ .JournalPath }}

# Diagnostic log path
# log_path: {{ .LogPath }}
`

type configTemplateData struct {
	VaultPath    string
	StateDir     string
	SettingsPath string
	JournalPath  string
	LogPath      string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		VaultPath:    viper.GetString("vault_path"),
		StateDir:     viper.GetString("state_dir"),
		SettingsPath: viper.GetString("settings_path"),
		JournalPath:  viper.GetString("journal_path"),
		LogPath:      viper.GetString("log_path"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "vault_path", EnvVar: "VAULTSYNC_VAULT_PATH"},
	{Key: "state_dir", EnvVar: "VAULTSYNC_STATE_DIR"},
	{Key: "settings_path", EnvVar: "VAULTSYNC_SETTINGS_PATH"},
	{Key: "journal_path", EnvVar: "VAULTSYNC_JOURNAL_PATH"},
	{Key: "log_path", EnvVar: "VAULTSYNC_LOG_PATH"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-16s %v  %s\n", k.Key, val, source)
	}

	// Sync settings live in their own file so the engine can reload
	// them independently of the CLI config.
	cfg, err := settingsStore().Load()
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out)
	ui.Info("Sync settings: %s", settingsStore().Path())
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "  %-16s %d\n", "commit_interval", cfg.CommitInterval)
	fmt.Fprintf(ui.Out, "  %-16s %s\n", "repo_url", orNone(cfg.RepoURL))
	fmt.Fprintf(ui.Out, "  %-16s %s\n", "auth_method", cfg.AuthMethod)
	fmt.Fprintf(ui.Out, "  %-16s %t\n", "auto_sync", cfg.AutoSync)
	fmt.Fprintf(ui.Out, "  %-16s %s\n", "commit_message", cfg.CommitMessage)
	fmt.Fprintf(ui.Out, "  %-16s %d\n", "log_max_entries", cfg.LogMaxEntries)
	fmt.Fprintf(ui.Out, "  %-16s %s\n", "last_sync", cfg.LastSync)

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func configSetRun(key, value string) error {
	store := settingsStore()
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	switch key {
	case "commit_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("commit_interval must be a number of minutes: %q", value)
		}
		cfg.CommitInterval = n
	case "repo_url":
		cfg.RepoURL = value
	case "auth_method":
		cfg.AuthMethod = strings.ToLower(value)
	case "auto_sync":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto_sync must be true or false: %q", value)
		}
		cfg.AutoSync = b
	case "commit_message":
		cfg.CommitMessage = value
	case "log_max_entries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("log_max_entries must be a number: %q", value)
		}
		cfg.LogMaxEntries = n
	default:
		return fmt.Errorf("unknown setting %q (see 'vaultsync config set --help')", key)
	}

	if err := store.Save(cfg); err != nil {
		return err
	}

	// Save clamps out-of-range values; report what actually stuck.
	saved, err := store.Load()
	if err != nil {
		return err
	}
	switch key {
	case "commit_interval":
		if saved.CommitInterval != cfg.CommitInterval {
			ui.Warning("commit_interval %d is out of range, using %d", cfg.CommitInterval, saved.CommitInterval)
		}
		ui.Success("commit_interval = %d", saved.CommitInterval)
	case "auth_method":
		if saved.AuthMethod != cfg.AuthMethod {
			ui.Warning("auth_method %q is not recognized, using %q", cfg.AuthMethod, saved.AuthMethod)
		}
		ui.Success("auth_method = %s", saved.AuthMethod)
	case "log_max_entries":
		if saved.LogMaxEntries != cfg.LogMaxEntries {
			ui.Warning("log_max_entries %d is out of range, using %d", cfg.LogMaxEntries, saved.LogMaxEntries)
		}
		ui.Success("log_max_entries = %d", saved.LogMaxEntries)
	case "commit_message":
		if saved.CommitMessage != cfg.CommitMessage {
			ui.Warning("empty commit_message is not allowed, using the default")
		}
		ui.Success("commit_message = %s", saved.CommitMessage)
	default:
		ui.Success("%s updated", key)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'vaultsync config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
