package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaultsync/vaultsync/internal/daemon"
	"github.com/vaultsync/vaultsync/internal/settings"
	"github.com/vaultsync/vaultsync/internal/watcher"
)

var watchNoInitialSync bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vault and sync continuously",
	Long: `Run in the foreground, syncing the vault on a timer and whenever
files change. Only one watcher may run per state directory; a second
invocation fails while the first is alive.

Stop with Ctrl-C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun()
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoInitialSync, "no-initial-sync", false, "Skip the sync cycle on startup")
	rootCmd.AddCommand(watchCmd)
}

func watchRun() error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if a.DisabledReason != nil {
		return a.DisabledReason
	}
	defer a.Shutdown()

	stateDir := viper.GetString("state_dir")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	pid := daemon.NewPIDFile(filepath.Join(stateDir, "vaultsync.pid"))
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pid.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Settings saved by another command in this process restart the
	// timer. Other processes are picked up on the next cycle's Load.
	prev, err := a.Settings.Load()
	if err != nil {
		return err
	}
	a.Settings.OnChange(func(cur settings.Settings) {
		a.HandleSettingsChanged(prev, cur)
		prev = cur
	})

	vault := viper.GetString("vault_path")
	w, err := watcher.New(vault)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	ui.Info("Watching %s", vault)
	a.StartAutoSync()

	if !watchNoInitialSync {
		a.Orchestrator.Run(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			ui.Info("Shutting down")
			return nil
		case hint := <-w.Events():
			// Change hints are advisory; the scheduler owns when syncs
			// actually happen.
			ui.VerboseLog("pending changes (%s)", hint)
		case werr := <-w.Errors():
			ui.Warning("watcher: %v", werr)
		}
	}
}
