package syncer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_RebaseConflict(t *testing.T) {
	err := errors.New("git rebase origin/main: CONFLICT (content): Merge conflict in notes/a.md")

	se := Classify(StepRebase, err)
	assert.Equal(t, KindConflictDuringPullOrRebase, se.Kind)
	assert.True(t, se.Recoverable)
}

func TestClassify_StashPopConflict(t *testing.T) {
	err := errors.New("git stash pop: CONFLICT (content): Merge conflict in notes/a.md")

	se := Classify(StepStashPop, err)
	assert.Equal(t, KindStashApplyConflict, se.Kind)
	assert.True(t, se.Recoverable)
}

func TestClassify_ConflictDisambiguatedByStep(t *testing.T) {
	err := errors.New("error: could not apply abc123")
	assert.Equal(t, KindConflictDuringPullOrRebase, Classify(StepRebase, err).Kind)
	assert.Equal(t, KindStashApplyConflict, Classify(StepStashPop, err).Kind)
}

func TestClassify_Authentication(t *testing.T) {
	cases := []string{
		"git push: git@example.com: Permission denied (publickey).",
		"git fetch: Host key verification failed.",
		"git push: fatal: Authentication failed for 'https://example.com/me/vault.git'",
		"git fetch: fatal: could not read Username for 'https://example.com'",
	}
	for _, msg := range cases {
		se := Classify(StepPush, errors.New(msg))
		assert.Equal(t, KindAuthenticationFailure, se.Kind, msg)
		assert.False(t, se.Recoverable)
	}
}

func TestClassify_RepositoryMissing(t *testing.T) {
	err := errors.New("git status: fatal: not a git repository (or any of the parent directories): .git")

	se := Classify(StepStatus, err)
	assert.Equal(t, KindRepositoryMissing, se.Kind)
	assert.False(t, se.Recoverable)
}

func TestClassify_RemoteUnreachable(t *testing.T) {
	err := errors.New("git fetch: fatal: Could not read from remote repository.")

	se := Classify(StepFetch, err)
	assert.Equal(t, KindRemoteUnreachable, se.Kind)
	assert.True(t, se.Recoverable)
}

func TestClassify_PriorityConflictBeatsAuth(t *testing.T) {
	// First match wins: a message containing both a conflict marker and an
	// auth phrase classifies as conflict.
	err := errors.New("CONFLICT while applying; later output mentions Permission denied")
	assert.Equal(t, KindConflictDuringPullOrRebase, Classify(StepRebase, err).Kind)
}

func TestClassify_GenericTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	se := Classify(StepCommit, errors.New(long))
	assert.Equal(t, KindGenericFailure, se.Kind)
	assert.True(t, se.Recoverable)
	assert.LessOrEqual(t, len(se.RawMessage), maxRawMessage+3)
	assert.True(t, strings.HasSuffix(se.RawMessage, "..."))
}

func TestClassify_Deterministic(t *testing.T) {
	err := errors.New("git fetch: fatal: Could not read from remote repository.")
	a := Classify(StepFetch, err)
	b := Classify(StepFetch, err)
	assert.Equal(t, a, b)
}

func TestUserMessage_PerKind(t *testing.T) {
	assert.Contains(t, (&SyncError{Kind: KindConflictDuringPullOrRebase, Recoverable: true}).UserMessage(), "manual resolution")
	assert.Contains(t, (&SyncError{Kind: KindConflictDuringPullOrRebase}).UserMessage(), "manual intervention")
	assert.Contains(t, (&SyncError{Kind: KindStashApplyConflict}).UserMessage(), "preserved")
	assert.Contains(t, (&SyncError{Kind: KindAuthenticationFailure}).UserMessage(), "credentials")
	assert.Contains(t, (&SyncError{Kind: KindRepositoryMissing}).UserMessage(), "not a git repository")
	assert.Contains(t, (&SyncError{Kind: KindRemoteUnreachable}).UserMessage(), "retry")
	assert.Equal(t, "bad setup", (&SyncError{Kind: KindConfigurationError, RawMessage: "bad setup"}).UserMessage())
	assert.Contains(t, (&SyncError{Kind: KindGenericFailure, RawMessage: "boom"}).UserMessage(), "boom")
}
