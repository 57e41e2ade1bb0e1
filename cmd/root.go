package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaultsync/vaultsync/internal/app"
	"github.com/vaultsync/vaultsync/internal/logging"
	"github.com/vaultsync/vaultsync/internal/output"
	"github.com/vaultsync/vaultsync/internal/settings"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui  *output.UI
	eng *app.App

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "vaultsync",
	Short: "Keep a note vault in sync with its git remote",
	Long: `vaultsync keeps a local note vault and its git remote in step.
Each sync cycle shelves local edits, pulls remote changes, replays your
work on top, then commits and pushes everything in one pass.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/vaultsync/config.yaml)")
	rootCmd.PersistentFlags().String("vault", "", "Vault directory (default: current directory)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "vaultsync")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VAULTSYNC")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultStateDir := filepath.Join(home, ".config", "vaultsync")
	cwd, _ := os.Getwd()

	viper.SetDefault("state_dir", defaultStateDir)
	viper.SetDefault("vault_path", cwd)
	viper.SetDefault("settings_path", filepath.Join(defaultStateDir, "settings.yaml"))
	viper.SetDefault("journal_path", filepath.Join(defaultStateDir, "journal.db"))
	viper.SetDefault("log_path", filepath.Join(defaultStateDir, "vaultsync.log"))

	_ = viper.BindPFlag("vault_path", rootCmd.PersistentFlags().Lookup("vault"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// getApp returns the shared engine, initializing it on first call. A
// vault that fails the repository probe still yields a usable app in a
// disabled state; commands decide how loudly to complain.
func getApp() (*app.App, error) {
	if eng != nil {
		return eng, nil
	}

	a, err := app.Init(context.Background(), app.Options{
		VaultPath:   viper.GetString("vault_path"),
		ConfigPath:  viper.GetString("settings_path"),
		JournalPath: viper.GetString("journal_path"),
		UI:          ui,
		Logger:      logging.NewFileLogger(viper.GetString("log_path")),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}

	eng = a
	return eng, nil
}

// settingsStore opens the sync settings file without touching the vault.
// Commands that only read or write settings must work outside a repo.
func settingsStore() *settings.FileStore {
	return settings.NewFileStore(viper.GetString("settings_path"))
}
