package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past sync runs",
	Long:  "Show past sync runs from the local journal, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show")
	rootCmd.AddCommand(historyCmd)
}

func historyRun() error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if a.Journal == nil {
		return fmt.Errorf("run journal unavailable (see log for details)")
	}

	entries, err := a.Journal.List(context.Background(), historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(entries) == 0 {
		ui.Info("No sync runs recorded yet")
		return nil
	}

	table := ui.Table([]string{"Started", "Duration", "Outcome", "Error"})
	for _, e := range entries {
		errCol := "-"
		if e.ErrorKind != "" {
			errCol = e.ErrorKind
		}
		table.Append([]string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond).String(),
			output.OutcomeColor(e.Outcome),
			errCol,
		})
	}
	table.Render()

	if verbose {
		for _, e := range entries {
			if e.ErrorMessage != "" {
				ui.VerboseLog("%s: %s", e.StartedAt.Local().Format("15:04:05"), e.ErrorMessage)
			}
		}
	}
	return nil
}
