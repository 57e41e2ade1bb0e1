// Package app wires the engine together and owns its lifecycle: the
// client capability probe runs once at init, the scheduler is created
// only after the client is ready, and shutdown cancels the timer
// unconditionally.
package app

import (
	"context"
	"log"

	"github.com/vaultsync/vaultsync/internal/git"
	"github.com/vaultsync/vaultsync/internal/journal"
	"github.com/vaultsync/vaultsync/internal/logging"
	"github.com/vaultsync/vaultsync/internal/output"
	"github.com/vaultsync/vaultsync/internal/settings"
	"github.com/vaultsync/vaultsync/internal/syncer"
)

// Options configures Init.
type Options struct {
	VaultPath   string
	ConfigPath  string
	JournalPath string // empty disables the run journal
	UI          *output.UI
	Logger      *log.Logger
}

// App holds the initialized engine components.
type App struct {
	UI           *output.UI
	Settings     *settings.FileStore
	Client       *git.ExecClient // nil when the capability probe failed
	Orchestrator *syncer.Orchestrator
	Scheduler    *syncer.Scheduler
	Journal      *journal.Store
	Logger       *log.Logger

	// DisabledReason is non-nil when the probe failed and the engine is
	// permanently disabled for this process.
	DisabledReason error
}

// Init performs capability negotiation and constructs the engine. A
// failed probe does not fail Init: the app comes up in a disabled state
// where every run reports a configuration error.
func Init(ctx context.Context, opts Options) (*App, error) {
	ui := opts.UI
	if ui == nil {
		ui = output.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	a := &App{
		UI:       ui,
		Settings: settings.NewFileStore(opts.ConfigPath),
		Logger:   logger,
	}

	client, err := git.Probe(opts.VaultPath)
	if err != nil {
		a.DisabledReason = err
		logger.Printf("capability probe failed, sync disabled: %v", err)
	} else {
		a.Client = client
	}

	notify := &uiNotifier{ui: ui}
	// A typed nil *ExecClient must not leak into the interface; the
	// orchestrator treats a nil client as "not ready".
	var cl git.Client
	if a.Client != nil {
		cl = a.Client
	}
	a.Orchestrator = syncer.New(cl, a.Settings, notify, logger)

	if opts.JournalPath != "" {
		j, err := journal.NewStore(opts.JournalPath)
		if err != nil {
			logger.Printf("journal unavailable: %v", err)
		} else if err := j.Migrate(ctx); err != nil {
			logger.Printf("journal migration failed: %v", err)
			_ = j.Close()
		} else {
			a.Journal = j
			a.Orchestrator.SetRecorder(j)
		}
	}

	// Scheduler last: it refuses to start while the client is unavailable.
	a.Scheduler = syncer.NewScheduler(a.Orchestrator, logger)
	return a, nil
}

// StartAutoSync installs the periodic timer when auto-sync is enabled.
func (a *App) StartAutoSync() {
	cfg, err := a.Settings.Load()
	if err != nil {
		a.Logger.Printf("cannot load settings: %v", err)
		return
	}
	if !cfg.AutoSync {
		a.Logger.Printf("auto-sync disabled in settings")
		return
	}
	a.Scheduler.Start(cfg.CommitInterval)
}

// HandleSettingsChanged re-derives scheduler state after a settings save.
// Wire it to the store's observer from the presentation layer. Saves made
// by a run itself arrive here on the scheduler's own tick goroutine,
// which Scheduler.Stop tolerates.
func (a *App) HandleSettingsChanged(prev, cur settings.Settings) {
	if prev.AutoSync == cur.AutoSync && prev.CommitInterval == cur.CommitInterval {
		return
	}
	a.Scheduler.Stop()
	if cur.AutoSync {
		a.Scheduler.Start(cur.CommitInterval)
	}
}

// Shutdown cancels the timer and releases resources. Safe to call more
// than once and regardless of how much of Init succeeded.
func (a *App) Shutdown() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Journal != nil {
		_ = a.Journal.Close()
		a.Journal = nil
	}
}

// uiNotifier adapts the terminal UI to the engine's notifier contract.
type uiNotifier struct {
	ui *output.UI
}

func (n *uiNotifier) Status(msg string) { n.ui.Info("%s", msg) }
func (n *uiNotifier) Warn(msg string)   { n.ui.Warning("%s", msg) }
func (n *uiNotifier) Failure(err *syncer.SyncError) {
	n.ui.Error("%s", err.UserMessage())
}
