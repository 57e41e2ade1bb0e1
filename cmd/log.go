package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/output"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent vault commits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return logRun()
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Maximum commits to show (default from settings)")
	rootCmd.AddCommand(logCmd)
}

func logRun() error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if a.DisabledReason != nil {
		return a.DisabledReason
	}

	limit := logLimit
	if limit <= 0 {
		cfg, err := a.Settings.Load()
		if err != nil {
			return err
		}
		limit = cfg.LogMaxEntries
	}

	commits, err := a.Client.Log(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	if len(commits) == 0 {
		ui.Info("No commits yet")
		return nil
	}

	table := ui.Table([]string{"Hash", "Date", "Author", "Message"})
	for _, c := range commits {
		table.Append([]string{
			output.Cyan(shortHash(c.Hash)),
			c.Date.Format("2006-01-02 15:04"),
			c.AuthorName,
			c.Message,
		})
	}
	table.Render()
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
