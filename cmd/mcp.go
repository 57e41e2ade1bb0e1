package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/git"
	"github.com/vaultsync/vaultsync/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients query and drive the vault natively. Configure
with:

  {
    "mcpServers": {
      "vaultsync": { "command": "vaultsync", "args": ["mcp"] }
    }
  }

Available tools: vault_sync_now, vault_status, vault_log, vault_history`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	a, err := getApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	// Nil interfaces keep the tools answering with a clear error when
	// the probe failed or the journal is closed.
	var gc git.Client
	if a.Client != nil {
		gc = a.Client
	}
	var hist mcp.HistoryLister
	if a.Journal != nil {
		hist = a.Journal
	}

	srv := mcp.NewServer(a.Orchestrator, gc, a.Settings, hist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ServeStdio(ctx)
}
