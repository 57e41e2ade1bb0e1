package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle now",
	Long: `Run a single sync cycle immediately: shelve local edits, fetch and
replay remote changes, restore your edits, then commit and push.

Exits non-zero when the cycle fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncRun() error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if a.DisabledReason != nil {
		return a.DisabledReason
	}

	// Progress and failure detail come through the notifier; here only
	// the exit code is decided.
	if a.Orchestrator.Run(context.Background()) == syncer.OutcomeFailed {
		return errors.New("sync failed")
	}
	return nil
}
