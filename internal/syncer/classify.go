package syncer

import "strings"

// ErrorKind is the fixed taxonomy every raw operation failure maps into.
type ErrorKind int

const (
	// KindConflictDuringPullOrRebase: rebase hit a conflict; the engine
	// auto-aborts to leave the tree clean and the user resolves manually.
	KindConflictDuringPullOrRebase ErrorKind = iota
	// KindStashApplyConflict: restoring shelved changes conflicted; the
	// stash is preserved, not dropped.
	KindStashApplyConflict
	// KindAuthenticationFailure: credential or SSH rejection.
	KindAuthenticationFailure
	// KindRepositoryMissing: target directory is not a valid repository.
	KindRepositoryMissing
	// KindRemoteUnreachable: network or URL failure reaching the remote.
	KindRemoteUnreachable
	// KindConfigurationError: missing client, missing repository URL, or
	// no checked-out branch.
	KindConfigurationError
	// KindGenericFailure: unclassified; message truncated for display.
	KindGenericFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflictDuringPullOrRebase:
		return "conflict-during-pull-or-rebase"
	case KindStashApplyConflict:
		return "stash-apply-conflict"
	case KindAuthenticationFailure:
		return "authentication-failure"
	case KindRepositoryMissing:
		return "repository-missing"
	case KindRemoteUnreachable:
		return "remote-unreachable"
	case KindConfigurationError:
		return "configuration-error"
	default:
		return "generic-failure"
	}
}

// SyncError is the classified form of a raw operation failure. Constructed
// only by Classify (or the orchestrator for configuration errors), never
// mutated afterwards.
type SyncError struct {
	Kind        ErrorKind
	RawMessage  string
	Recoverable bool
}

func (e *SyncError) Error() string {
	return e.RawMessage
}

// UserMessage returns the single human-readable notification text for
// this failure. Internal diagnostic detail stays in RawMessage.
func (e *SyncError) UserMessage() string {
	switch e.Kind {
	case KindConflictDuringPullOrRebase:
		if e.Recoverable {
			return "rebase conflict — manual resolution needed, then sync again"
		}
		return "rebase conflict and abort failed — manual intervention required"
	case KindStashApplyConflict:
		return "conflict while restoring local changes — the stash is preserved, resolve manually"
	case KindAuthenticationFailure:
		return "authentication failed — check your SSH key or credentials"
	case KindRepositoryMissing:
		return "the target directory is not a git repository"
	case KindRemoteUnreachable:
		return "could not reach the remote — will retry on the next sync"
	case KindConfigurationError:
		return e.RawMessage
	default:
		return "sync failed: " + e.RawMessage
	}
}

// maxRawMessage bounds the message carried on unclassified failures so
// display surfaces never receive a wall of git output.
const maxRawMessage = 200

// authPhrases cover the ssh and https rejection messages git relays.
var authPhrases = []string{
	"Permission denied",
	"permission denied",
	"Host key verification failed",
	"Authentication failed",
	"could not read Username",
	"publickey",
}

// Classify maps a raw operation failure to a SyncError. Deterministic,
// side-effect-free, first match wins. The step that raised the failure
// disambiguates the two conflict kinds.
func Classify(step Step, err error) *SyncError {
	msg := err.Error()

	if isConflictMessage(msg) {
		if step == StepStashPop {
			return &SyncError{Kind: KindStashApplyConflict, RawMessage: msg, Recoverable: true}
		}
		return &SyncError{Kind: KindConflictDuringPullOrRebase, RawMessage: msg, Recoverable: true}
	}
	for _, phrase := range authPhrases {
		if strings.Contains(msg, phrase) {
			return &SyncError{Kind: KindAuthenticationFailure, RawMessage: msg}
		}
	}
	if strings.Contains(msg, "not a git repository") {
		return &SyncError{Kind: KindRepositoryMissing, RawMessage: msg}
	}
	if strings.Contains(strings.ToLower(msg), "could not read from remote") {
		return &SyncError{Kind: KindRemoteUnreachable, RawMessage: msg, Recoverable: true}
	}
	return &SyncError{Kind: KindGenericFailure, RawMessage: truncate(msg, maxRawMessage), Recoverable: true}
}

func isConflictMessage(msg string) bool {
	return strings.Contains(msg, "CONFLICT") ||
		strings.Contains(msg, "could not apply") ||
		strings.Contains(msg, "Merge conflict") ||
		strings.Contains(msg, "needs merge")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
