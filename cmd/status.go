package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaultsync/vaultsync/internal/git"
	"github.com/vaultsync/vaultsync/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault sync status",
	Long: `Show the vault's working tree state: current branch, tracking
branch, ahead/behind counts, pending changes, and the last sync time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	a, err := getApp()
	if err != nil {
		return err
	}

	ui.Info("Vault: %s", output.Cyan(viper.GetString("vault_path")))

	cfg, err := a.Settings.Load()
	if err != nil {
		return err
	}

	if a.DisabledReason != nil {
		ui.Warning("Sync disabled: %v", a.DisabledReason)
		ui.Info("Last sync: %s", cfg.LastSync)
		return nil
	}

	snap, err := a.Client.Status(context.Background())
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	branch := snap.Branch
	if branch == "" {
		branch = "(no branch)"
	}
	if snap.HasUpstream() {
		ui.Info("Branch: %s tracking %s (ahead %d, behind %d)",
			output.Cyan(branch), output.Cyan(snap.Upstream), snap.Ahead, snap.Behind)
	} else {
		ui.Info("Branch: %s (no tracking branch)", output.Cyan(branch))
	}

	if snap.HasLocalChanges() {
		ui.Info("Changes: %s", output.Yellow(fmt.Sprintf("%d file(s)", len(snap.Files))))
		if verbose {
			table := ui.Table([]string{"State", "Path"})
			for _, f := range snap.Files {
				table.Append([]string{fileStateLabel(f), f.Path})
			}
			table.Render()
		}
	} else {
		ui.Info("Changes: %s", output.Green("clean"))
	}

	ui.Info("Last sync: %s", cfg.LastSync)
	if cfg.AutoSync {
		ui.Info("Auto-sync: every %d minute(s)", cfg.CommitInterval)
	} else {
		ui.Info("Auto-sync: off")
	}

	return nil
}

func fileStateLabel(f git.FileStatus) string {
	switch {
	case f.Staged == git.StateUnmerged || f.Worktree == git.StateUnmerged:
		return output.Red("conflict")
	case f.Worktree == git.StateUntracked:
		return "untracked"
	case f.Worktree == git.StateDeleted || f.Staged == git.StateDeleted:
		return "deleted"
	case f.Staged == git.StateAdded:
		return "added"
	case f.Staged == git.StateRenamed:
		return "renamed"
	default:
		return "modified"
	}
}
