package git

import (
	"strconv"
	"strings"
)

// FileState is a single-character working-tree or index state as reported
// by `git status --porcelain=v2` ('.' clean, 'M' modified, 'A' added,
// 'D' deleted, 'R' renamed, '?' untracked, 'U' unmerged).
type FileState byte

const (
	StateClean     FileState = '.'
	StateModified  FileState = 'M'
	StateAdded     FileState = 'A'
	StateDeleted   FileState = 'D'
	StateRenamed   FileState = 'R'
	StateUntracked FileState = '?'
	StateUnmerged  FileState = 'U'
)

// FileStatus holds the per-path index and working-tree state.
type FileStatus struct {
	Path     string
	Staged   FileState
	Worktree FileState
}

// Snapshot is a point-in-time result of a status query. It is immutable
// once obtained; two snapshots taken at different steps of a sync run are
// never assumed consistent with each other.
type Snapshot struct {
	Branch   string // empty in detached HEAD state
	Upstream string // tracking branch, empty if none configured
	Ahead    int
	Behind   int
	Files    []FileStatus
}

// HasLocalChanges reports whether any path is in a non-clean working-tree
// or staged state, untracked paths included.
func (s *Snapshot) HasLocalChanges() bool {
	return len(s.Files) > 0
}

// StagedCount returns the number of paths with a non-clean staged state.
func (s *Snapshot) StagedCount() int {
	n := 0
	for _, f := range s.Files {
		if f.Staged != StateClean && f.Staged != StateUntracked {
			n++
		}
	}
	return n
}

// HasUpstream reports whether a tracking branch is configured.
func (s *Snapshot) HasUpstream() bool {
	return s.Upstream != ""
}

// ParseStatus parses `git status --porcelain=v2 --branch` output.
func ParseStatus(output string) *Snapshot {
	snap := &Snapshot{}
	if output == "" {
		return snap
	}
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "# branch.head "):
			head := strings.TrimPrefix(line, "# branch.head ")
			if head != "(detached)" {
				snap.Branch = head
			}
		case strings.HasPrefix(line, "# branch.upstream "):
			snap.Upstream = strings.TrimPrefix(line, "# branch.upstream ")
		case strings.HasPrefix(line, "# branch.ab "):
			// "# branch.ab +<ahead> -<behind>"
			fields := strings.Fields(strings.TrimPrefix(line, "# branch.ab "))
			if len(fields) == 2 {
				snap.Ahead, _ = strconv.Atoi(strings.TrimPrefix(fields[0], "+"))
				snap.Behind, _ = strconv.Atoi(strings.TrimPrefix(fields[1], "-"))
			}
		case strings.HasPrefix(line, "# "):
			// branch.oid and any future headers
		case strings.HasPrefix(line, "1 "):
			if f, ok := parseOrdinaryEntry(line); ok {
				snap.Files = append(snap.Files, f)
			}
		case strings.HasPrefix(line, "2 "):
			if f, ok := parseRenameEntry(line); ok {
				snap.Files = append(snap.Files, f)
			}
		case strings.HasPrefix(line, "u "):
			if f, ok := parseUnmergedEntry(line); ok {
				snap.Files = append(snap.Files, f)
			}
		case strings.HasPrefix(line, "? "):
			snap.Files = append(snap.Files, FileStatus{
				Path:     strings.TrimPrefix(line, "? "),
				Staged:   StateUntracked,
				Worktree: StateUntracked,
			})
		}
	}
	return snap
}

// "1 XY sub mH mI mW hH hI path"
func parseOrdinaryEntry(line string) (FileStatus, bool) {
	fields := strings.SplitN(line, " ", 9)
	if len(fields) < 9 || len(fields[1]) != 2 {
		return FileStatus{}, false
	}
	return FileStatus{
		Path:     fields[8],
		Staged:   FileState(fields[1][0]),
		Worktree: FileState(fields[1][1]),
	}, true
}

// "2 XY sub mH mI mW hH hI Xscore path<TAB>origPath"
func parseRenameEntry(line string) (FileStatus, bool) {
	fields := strings.SplitN(line, " ", 10)
	if len(fields) < 10 || len(fields[1]) != 2 {
		return FileStatus{}, false
	}
	path := fields[9]
	if i := strings.IndexByte(path, '\t'); i >= 0 {
		path = path[:i]
	}
	return FileStatus{
		Path:     path,
		Staged:   FileState(fields[1][0]),
		Worktree: FileState(fields[1][1]),
	}, true
}

// "u XY sub m1 m2 m3 mW h1 h2 h3 path"
func parseUnmergedEntry(line string) (FileStatus, bool) {
	fields := strings.SplitN(line, " ", 11)
	if len(fields) < 11 {
		return FileStatus{}, false
	}
	return FileStatus{
		Path:     fields[10],
		Staged:   StateUnmerged,
		Worktree: StateUnmerged,
	}, true
}
