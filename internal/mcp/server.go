package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vaultsync/vaultsync/internal/git"
	"github.com/vaultsync/vaultsync/internal/journal"
	"github.com/vaultsync/vaultsync/internal/settings"
	"github.com/vaultsync/vaultsync/internal/syncer"
)

// Runner triggers a sync cycle. Satisfied by syncer.Orchestrator.
type Runner interface {
	Run(ctx context.Context) syncer.Outcome
	Ready() bool
}

// HistoryLister reads past run records. Satisfied by journal.Store.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Server wraps the sync engine and exposes it as MCP tools.
type Server struct {
	runner   Runner
	git      git.Client
	settings settings.Store
	history  HistoryLister
}

// NewServer creates the MCP server wrapper. history may be nil when the
// run journal is unavailable.
func NewServer(runner Runner, gc git.Client, st settings.Store, history HistoryLister) *Server {
	return &Server{
		runner:   runner,
		git:      gc,
		settings: st,
		history:  history,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("vaultsync", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.syncNowTool())
	srv.AddTool(s.statusTool())
	srv.AddTool(s.logTool())
	srv.AddTool(s.historyTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// vault_sync_now
func (s *Server) syncNowTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vault_sync_now",
		mcp.WithDescription("Run a sync cycle immediately: shelve local edits, pull remote changes, commit and push. Returns the outcome (synced, up-to-date, committed (not pushed), failed, or already running)."),
	)
	return tool, s.handleSyncNow
}

func (s *Server) handleSyncNow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.runner.Ready() {
		return mcp.NewToolResultError("sync is disabled: vault is not a git repository or git is not installed"), nil
	}
	outcome := s.runner.Run(ctx)

	data, err := json.Marshal(map[string]any{"outcome": outcome.String()})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal outcome: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// vault_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vault_status",
		mcp.WithDescription("Report the vault's working tree state: current branch, tracking branch, ahead/behind counts, changed file count, and the last successful sync time."),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.git == nil {
		return mcp.NewToolResultError("sync is disabled: no repository client available"), nil
	}
	snap, err := s.git.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read status: %v", err)), nil
	}

	lastSync := settings.LastSyncNever
	autoSync := false
	if s.settings != nil {
		if cfg, err := s.settings.Load(); err == nil {
			lastSync = cfg.LastSync
			autoSync = cfg.AutoSync
		}
	}

	result := map[string]any{
		"branch":        snap.Branch,
		"tracking":      snap.Upstream,
		"ahead":         snap.Ahead,
		"behind":        snap.Behind,
		"changed_files": len(snap.Files),
		"clean":         !snap.HasLocalChanges(),
		"last_sync":     lastSync,
		"auto_sync":     autoSync,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// vault_log
func (s *Server) logTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vault_log",
		mcp.WithDescription("List recent commits in the vault. Returns a JSON array with hash, author, date (RFC 3339), and message for each commit, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of commits to return (default from settings)")),
	)
	return tool, s.handleLog
}

func (s *Server) handleLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.git == nil {
		return mcp.NewToolResultError("sync is disabled: no repository client available"), nil
	}

	limit := 0
	if s.settings != nil {
		if cfg, err := s.settings.Load(); err == nil {
			limit = cfg.LogMaxEntries
		}
	}
	if v := request.GetInt("limit", 0); v > 0 {
		limit = v
	}
	if limit <= 0 {
		limit = settings.DefaultLogMaxEntries
	}

	commits, err := s.git.Log(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read log: %v", err)), nil
	}

	type commitOut struct {
		Hash    string `json:"hash"`
		Author  string `json:"author"`
		Date    string `json:"date"`
		Message string `json:"message"`
	}

	out := make([]commitOut, len(commits))
	for i, c := range commits {
		out[i] = commitOut{
			Hash:    c.Hash,
			Author:  c.AuthorName,
			Date:    c.Date.Format(time.RFC3339),
			Message: c.Message,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal log: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// vault_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vault_history",
		mcp.WithDescription("List past sync runs from the local journal. Returns a JSON array with start time, duration, outcome, and error details for failed runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return (default 20)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("run journal is unavailable"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}

	entries, err := s.history.List(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %v", err)), nil
	}

	type runOut struct {
		ID        string `json:"id"`
		StartedAt string `json:"started_at"`
		Duration  string `json:"duration"`
		Outcome   string `json:"outcome"`
		ErrorKind string `json:"error_kind,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	out := make([]runOut, len(entries))
	for i, e := range entries {
		out[i] = runOut{
			ID:        e.ID,
			StartedAt: e.StartedAt.Format(time.RFC3339),
			Duration:  e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond).String(),
			Outcome:   e.Outcome,
			ErrorKind: e.ErrorKind,
			Error:     e.ErrorMessage,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal history: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
