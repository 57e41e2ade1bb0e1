package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Commit holds one entry from the repository history.
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Date        time.Time
	Message     string
}

// Client defines the interface for version-control operations against a
// single repository bound to one remote. The sync engine depends only on
// this contract; how the operations are carried out (CLI, native library)
// is an implementation detail.
type Client interface {
	Status(ctx context.Context) (*Snapshot, error)
	Fetch(ctx context.Context) error
	// StashPush shelves all local edits, untracked paths included, under
	// the given label. Returns false when there was nothing to shelve.
	StashPush(ctx context.Context, label string) (bool, error)
	StashPop(ctx context.Context) error
	RebaseOnto(ctx context.Context, ref string) error
	RebaseAbort(ctx context.Context) error
	StageAll(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
	Log(ctx context.Context, maxEntries int) ([]Commit, error)
}

// ExecClient implements Client by shelling out to the git binary,
// bound to a single repository path.
type ExecClient struct {
	repoPath string
}

// Probe verifies the git binary is available and path is inside a work
// tree, returning a ready client. A failed probe means the sync engine
// stays permanently disabled for this process; callers should not retry.
func Probe(path string) (*ExecClient, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git binary not found in PATH: %w", err)
	}
	c := &ExecClient{repoPath: path}
	if _, err := c.git(context.Background(), "rev-parse", "--show-toplevel"); err != nil {
		return nil, err
	}
	return c, nil
}

// NewExecClient returns a client for the given repository path without
// probing it. Use Probe when availability must be established first.
func NewExecClient(path string) *ExecClient {
	return &ExecClient{repoPath: path}
}

// RepoPath returns the repository path this client is bound to.
func (c *ExecClient) RepoPath() string { return c.repoPath }

func (c *ExecClient) git(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", c.repoPath}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *ExecClient) Status(ctx context.Context) (*Snapshot, error) {
	out, err := c.git(ctx, "status", "--porcelain=v2", "--branch")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out), nil
}

func (c *ExecClient) Fetch(ctx context.Context) error {
	_, err := c.git(ctx, "fetch")
	return err
}

func (c *ExecClient) StashPush(ctx context.Context, label string) (bool, error) {
	out, err := c.git(ctx, "stash", "push", "--include-untracked", "-m", label)
	if err != nil {
		return false, err
	}
	// git exits 0 with this message when the tree turned out to be clean.
	if strings.Contains(out, "No local changes to save") {
		return false, nil
	}
	return true, nil
}

func (c *ExecClient) StashPop(ctx context.Context) error {
	_, err := c.git(ctx, "stash", "pop")
	return err
}

func (c *ExecClient) RebaseOnto(ctx context.Context, ref string) error {
	_, err := c.git(ctx, "rebase", ref)
	return err
}

func (c *ExecClient) RebaseAbort(ctx context.Context) error {
	_, err := c.git(ctx, "rebase", "--abort")
	return err
}

func (c *ExecClient) StageAll(ctx context.Context) error {
	_, err := c.git(ctx, "add", "-A")
	return err
}

func (c *ExecClient) Commit(ctx context.Context, message string) error {
	_, err := c.git(ctx, "commit", "-m", message)
	return err
}

func (c *ExecClient) Push(ctx context.Context) error {
	_, err := c.git(ctx, "push")
	return err
}

// logFormat uses unit separators so author names and messages containing
// spaces survive splitting.
const logFormat = "%H%x1f%an%x1f%ae%x1f%aI%x1f%s"

func (c *ExecClient) Log(ctx context.Context, maxEntries int) ([]Commit, error) {
	out, err := c.git(ctx, "log", "-n", fmt.Sprintf("%d", maxEntries), "--pretty=format:"+logFormat)
	if err != nil {
		return nil, err
	}
	return ParseLog(out), nil
}

// ParseLog parses `git log --pretty=format:` output using the unit
// separator layout of logFormat.
func ParseLog(output string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 5 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, fields[3])
		commits = append(commits, Commit{
			Hash:        fields[0],
			AuthorName:  fields[1],
			AuthorEmail: fields[2],
			Date:        date,
			Message:     fields[4],
		})
	}
	return commits
}

// conflictMarkers are substrings git emits when an apply, merge, or
// rebase stops on conflicting hunks.
var conflictMarkers = []string{
	"CONFLICT",
	"could not apply",
	"needs merge",
	"Merge conflict",
}

// IsConflict reports whether an error from StashPop or RebaseOnto was a
// content conflict rather than an operational failure.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range conflictMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
