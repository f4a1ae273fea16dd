// Package git queries local repository state by shelling out to the git CLI.
// All queries are read-only and bounded by a short timeout; the tracker never
// mutates a working tree.
package git

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/prtrackr/internal/errors"
	"github.com/mark3labs/prtrackr/internal/logger"
)

// queryTimeout bounds every git subprocess. Local queries are cheap; if git
// hangs (e.g. on a dead network filesystem) the scheduler must not block.
const queryTimeout = 3 * time.Second

// Info describes the current state of a working tree.
type Info struct {
	Branch string // current branch name
	Hash   string // short commit hash (7 chars)
	Dirty  bool   // uncommitted changes present
	Ahead  int    // commits ahead of upstream (0 if no upstream)
	Behind int    // commits behind upstream (0 if no upstream)
}

// CLI is a thin handle used to satisfy the tracker's branch-reader interface.
type CLI struct{}

// CurrentBranch returns the branch checked out in dir.
func (CLI) CurrentBranch(dir string) (string, error) {
	return CurrentBranch(dir)
}

// CurrentBranch returns the branch checked out in dir.
// Returns an error for non-repositories, detached HEADs included as "HEAD".
func CurrentBranch(dir string) (string, error) {
	out, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GetInfo returns repository state for dir, or nil if dir is not inside a
// git working tree. Missing upstream is not an error; ahead/behind stay 0.
func GetInfo(dir string) (*Info, error) {
	if _, err := runGit(dir, "rev-parse", "--is-inside-work-tree"); err != nil {
		// Not a repository. Callers treat nil as "nothing to track".
		return nil, nil
	}

	info := &Info{}

	branch, err := CurrentBranch(dir)
	if err != nil {
		return nil, err
	}
	info.Branch = branch

	if out, err := runGit(dir, "rev-parse", "--short=7", "HEAD"); err == nil {
		info.Hash = strings.TrimSpace(out)
	}

	if out, err := runGit(dir, "status", "--porcelain"); err == nil {
		info.Dirty = strings.TrimSpace(out) != ""
	}

	// Ahead/behind requires an upstream; absence is normal for new branches.
	if out, err := runGit(dir, "rev-list", "--left-right", "--count", "@{upstream}...HEAD"); err == nil {
		fields := strings.Fields(out)
		if len(fields) == 2 {
			info.Behind, _ = strconv.Atoi(fields[0])
			info.Ahead, _ = strconv.Atoi(fields[1])
		}
	}

	return info, nil
}

// runGit executes a git command in dir and returns combined output.
// Failures are transient errors; callers degrade rather than abort.
func runGit(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Debug("git %s failed in %s: %v", strings.Join(args, " "), dir, err)
		return "", errors.NewTransientError("git "+args[0], err)
	}
	return string(out), nil
}
