// Package syncer implements the vault synchronization engine: a strictly
// sequential reconciliation protocol (detect local changes, shelve them,
// fetch remote state, reconcile divergence, restore shelved changes,
// commit, publish) with a single-flight guard, error classification, and
// a periodic trigger.
package syncer

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/vaultsync/vaultsync/internal/git"
	"github.com/vaultsync/vaultsync/internal/settings"
)

// StashLabel marks stash entries created by the engine so users can
// recognize them in `git stash list`.
const StashLabel = "vaultsync auto-stash"

// timestampLayout renders the date placeholder in commit messages and
// the last-sync field (YYYY-MM-DD HH:mm:ss).
const timestampLayout = "2006-01-02 15:04:05"

// datePlaceholder is the token substituted in the commit message template.
const datePlaceholder = "{{date}}"

// Step identifies which protocol step raised a failure, which the
// classifier needs to disambiguate the two conflict kinds.
type Step int

const (
	StepStatus Step = iota
	StepStash
	StepFetch
	StepRebase
	StepStashPop
	StepStage
	StepCommit
	StepPush
)

func (s Step) String() string {
	switch s {
	case StepStatus:
		return "status"
	case StepStash:
		return "stash"
	case StepFetch:
		return "fetch"
	case StepRebase:
		return "rebase"
	case StepStashPop:
		return "stash-pop"
	case StepStage:
		return "stage"
	case StepCommit:
		return "commit"
	case StepPush:
		return "push"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one reconciliation run.
type Outcome int

const (
	// OutcomeFailed: the run ended with a classified error.
	OutcomeFailed Outcome = iota
	// OutcomeSynced: a commit was created and pushed.
	OutcomeSynced
	// OutcomeUpToDate: nothing to commit; local and remote reconciled.
	OutcomeUpToDate
	// OutcomeCommittedLocal: a commit was created but no tracking branch
	// exists, so nothing was pushed.
	OutcomeCommittedLocal
	// OutcomeAlreadyRunning: another run held the single-flight guard.
	OutcomeAlreadyRunning
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSynced:
		return "synced"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeCommittedLocal:
		return "committed (not pushed)"
	case OutcomeAlreadyRunning:
		return "already running"
	default:
		return "failed"
	}
}

// Notifier receives the user-visible output of a run: exactly one status
// line per terminal outcome, warnings raised mid-run, and one failure
// notification when the run ends in error.
type Notifier interface {
	Status(msg string)
	Warn(msg string)
	Failure(err *SyncError)
}

type nopNotifier struct{}

func (nopNotifier) Status(string)      {}
func (nopNotifier) Warn(string)        {}
func (nopNotifier) Failure(*SyncError) {}

// RunRecord summarizes one completed run for the journal.
type RunRecord struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      string
	ErrorKind    string
	ErrorMessage string
}

// Recorder persists run records. Optional; a nil recorder is valid.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// session is the ephemeral state of one run, owned exclusively by that
// run and never shared.
type session struct {
	stashed  bool
	branch   string
	tracking string
	ahead    int
	behind   int
}

// Orchestrator drives one reconciliation attempt at a time. Safe to call
// from multiple goroutines; overlapping calls return OutcomeAlreadyRunning
// without waiting.
type Orchestrator struct {
	client   git.Client
	store    settings.Store
	notify   Notifier
	logger   *log.Logger
	recorder Recorder

	// now is replaceable in tests.
	now func() time.Time

	// mu is the process-wide single-flight guard. Released on every exit
	// path so a failed step can never wedge the engine into always-busy.
	mu sync.Mutex
}

// New creates an orchestrator. client may be nil when capability
// negotiation failed at startup; every run then reports a configuration
// error. logger carries internal diagnostics and may be nil.
func New(client git.Client, store settings.Store, notify Notifier, logger *log.Logger) *Orchestrator {
	if notify == nil {
		notify = nopNotifier{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		client: client,
		store:  store,
		notify: notify,
		logger: logger,
		now:    time.Now,
	}
}

// SetRecorder attaches an optional run journal.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// Ready reports whether the version-control client is available.
func (o *Orchestrator) Ready() bool { return o.client != nil }

// Run executes one reconciliation attempt and returns its terminal
// outcome. If a run is already in progress it returns immediately with
// OutcomeAlreadyRunning and no state change beyond a user-visible notice.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	if !o.mu.TryLock() {
		o.notify.Status("sync already in progress")
		return OutcomeAlreadyRunning
	}
	defer o.mu.Unlock()

	started := o.now()
	s := &session{}
	outcome, serr := o.runLocked(ctx, s)
	if serr != nil {
		// Any failure other than the two conflict cases leaves a pending
		// stash unannounced; tell the user before the final report.
		if s.stashed && serr.Kind != KindConflictDuringPullOrRebase && serr.Kind != KindStashApplyConflict {
			o.notify.Warn("local changes were stashed — recover them manually with `git stash pop`")
		}
		o.logger.Printf("run failed: kind=%s raw=%s", serr.Kind, serr.RawMessage)
		o.notify.Failure(serr)
	}

	if o.recorder != nil {
		rec := RunRecord{
			StartedAt:  started,
			FinishedAt: o.now(),
			Outcome:    outcome.String(),
		}
		if serr != nil {
			rec.ErrorKind = serr.Kind.String()
			rec.ErrorMessage = serr.RawMessage
		}
		if err := o.recorder.Record(ctx, rec); err != nil {
			o.logger.Printf("journal record failed: %v", err)
		}
	}
	return outcome
}

// runLocked executes the protocol. It is called with the single-flight
// guard held and returns a non-nil SyncError for failed runs.
func (o *Orchestrator) runLocked(ctx context.Context, s *session) (Outcome, *SyncError) {
	if o.client == nil {
		return OutcomeFailed, configError("version-control client is unavailable")
	}
	cfg, err := o.store.Load()
	if err != nil {
		return OutcomeFailed, configError(fmt.Sprintf("cannot load settings: %v", err))
	}
	if cfg.RepoURL == "" {
		return OutcomeFailed, configError("repository URL is not configured")
	}

	// Step 1: detect local changes.
	snap, err := o.client.Status(ctx)
	if err != nil {
		return OutcomeFailed, Classify(StepStatus, err)
	}
	hasLocalChanges := snap.HasLocalChanges()
	o.logger.Printf("run start: branch=%s dirty=%v", snap.Branch, hasLocalChanges)

	// Step 2: shelve local edits. A failure here is fatal for the run;
	// aborting immediately is what avoids data loss, and no stash is
	// assumed to exist afterwards.
	if hasLocalChanges {
		created, err := o.client.StashPush(ctx, StashLabel)
		if err != nil {
			o.notify.Warn("sync aborted to avoid data loss: local changes could not be shelved")
			return OutcomeFailed, Classify(StepStash, err)
		}
		s.stashed = created
	}

	// Step 3: fetch remote refs.
	if err := o.client.Fetch(ctx); err != nil {
		return OutcomeFailed, Classify(StepFetch, err)
	}

	// Step 4: re-snapshot and reconcile divergence. The pre-fetch snapshot
	// is stale by now and must not feed later decisions.
	snap, err = o.client.Status(ctx)
	if err != nil {
		return OutcomeFailed, Classify(StepStatus, err)
	}
	s.branch, s.tracking = snap.Branch, snap.Upstream
	s.ahead, s.behind = snap.Ahead, snap.Behind

	if s.branch == "" {
		return OutcomeFailed, configError("no checked-out branch; a branch is required to sync")
	}

	switch {
	case s.tracking != "" && s.behind > 0:
		if serr := o.rebase(ctx, s); serr != nil {
			return OutcomeFailed, serr
		}
	case s.tracking == "" && s.behind > 0:
		o.notify.Warn("no tracking branch configured — cannot reconcile remote changes, skipping rebase")
	}
	if s.tracking == "" && s.ahead > 0 {
		o.notify.Warn("no tracking branch configured — commits will stay local")
	}

	// Step 5: restore shelved changes.
	if s.stashed {
		if err := o.client.StashPop(ctx); err != nil {
			// Conflict or not, the stash is still present: git keeps the
			// entry when a pop fails. Classification by step yields
			// StashApplyConflict for the conflict case; other failures
			// reach the top-level pending-stash warning.
			return OutcomeFailed, Classify(StepStashPop, err)
		}
		s.stashed = false
	}

	// Step 6: stage everything, untracked paths included. One consistent
	// policy: what `git add -A` stages is what gets committed.
	if err := o.client.StageAll(ctx); err != nil {
		return OutcomeFailed, Classify(StepStage, err)
	}

	// Step 7: recount from a fresh snapshot; staging may have been a no-op.
	snap, err = o.client.Status(ctx)
	if err != nil {
		return OutcomeFailed, Classify(StepStatus, err)
	}
	staged := snap.StagedCount()
	if staged == 0 {
		o.persistLastSync(&cfg)
		o.notify.Status("up-to-date — no local changes to commit")
		return OutcomeUpToDate, nil
	}

	msg := RenderCommitMessage(cfg.CommitMessage, o.now())
	if err := o.client.Commit(ctx, msg); err != nil {
		return OutcomeFailed, Classify(StepCommit, err)
	}

	// Step 8: publish.
	if s.tracking == "" {
		o.notify.Warn("commit created but not pushed: no tracking branch configured")
		o.persistLastSync(&cfg)
		o.notify.Status(fmt.Sprintf("committed %d file(s) locally (not pushed)", staged))
		return OutcomeCommittedLocal, nil
	}
	if err := o.client.Push(ctx); err != nil {
		return OutcomeFailed, Classify(StepPush, err)
	}
	o.persistLastSync(&cfg)
	o.notify.Status(fmt.Sprintf("synced %d file(s) to %s", staged, s.tracking))
	return OutcomeSynced, nil
}

// rebase replays local commits onto the tracking branch. On conflict the
// engine issues a best-effort abort to leave the tree clean.
func (o *Orchestrator) rebase(ctx context.Context, s *session) *SyncError {
	o.logger.Printf("rebasing onto %s (behind=%d)", s.tracking, s.behind)
	err := o.client.RebaseOnto(ctx, s.tracking)
	if err == nil {
		return nil
	}
	if !git.IsConflict(err) {
		return Classify(StepRebase, err)
	}

	// The stash entry survives whether or not the abort below succeeds;
	// report it before anything else can go wrong.
	if s.stashed {
		o.notify.Warn("your stashed local changes are still pending — restore them with `git stash pop` after resolving")
	}

	if abortErr := o.client.RebaseAbort(ctx); abortErr != nil {
		o.logger.Printf("rebase abort failed: %v", abortErr)
		return &SyncError{
			Kind:        KindConflictDuringPullOrRebase,
			RawMessage:  err.Error(),
			Recoverable: false,
		}
	}
	return Classify(StepRebase, err)
}

// persistLastSync updates the last-sync timestamp. A persistence failure
// does not fail an otherwise successful run.
func (o *Orchestrator) persistLastSync(cfg *settings.Settings) {
	cfg.LastSync = o.now().Format(timestampLayout)
	if err := o.store.Save(*cfg); err != nil {
		o.logger.Printf("persist settings failed: %v", err)
		o.notify.Warn("could not persist last-sync timestamp")
	}
}

// RenderCommitMessage substitutes the date placeholder in the template
// with the given local timestamp. Templates without the placeholder pass
// through unchanged.
func RenderCommitMessage(template string, now time.Time) string {
	return strings.ReplaceAll(template, datePlaceholder, now.Format(timestampLayout))
}

func configError(msg string) *SyncError {
	return &SyncError{Kind: KindConfigurationError, RawMessage: msg}
}
