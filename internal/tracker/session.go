package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/mark3labs/prtrackr/internal/gh"
)

// PinTarget identifies a PR the session is explicitly locked onto,
// overriding branch-based detection.
type PinTarget struct {
	Repo   string // "owner/name"
	Number int
}

func (p PinTarget) String() string {
	return fmt.Sprintf("%s#%d", p.Repo, p.Number)
}

// Session is the unit of isolation: one mutable record per agent session.
// It is owned exclusively by the tracker's session table and mutated only
// under the tracker's lock; no other component retains a reference across
// ticks.
type Session struct {
	ID             string
	WorkDir        string // refreshed on every event referencing the session
	LastBranch     string
	LastSnapshot   *gh.Snapshot // fallback display value, replaced never mutated
	RepoID         *gh.RepoIdentity
	Pin            *PinTarget
	AutoIterate    bool
	IterationCount int

	// pending is the debounced iteration trigger. pendingGen invalidates
	// timers that fire after being superseded or after session teardown.
	pending    *time.Timer
	pendingGen int
}

// cancelPending invalidates any scheduled iteration trigger.
func (s *Session) cancelPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.pendingGen++
}

var (
	// prURLPattern matches GitHub PR URLs in command text or output.
	prURLPattern = regexp.MustCompile(`https://github\.com/([\w.-]+/[\w.-]+)/pull/(\d+)`)

	// pushCommandPattern matches push-like commands: a push proper, or a PR
	// creation (which implies a push).
	pushCommandPattern = regexp.MustCompile(`\bgit\s+push\b|\bgh\s+pr\s+create\b`)

	// cdPrefixPattern matches an explicit "cd <dir> &&" prefix, used when a
	// push targets a different working tree than the session's own.
	cdPrefixPattern = regexp.MustCompile(`^\s*cd\s+(\S+)\s*&&`)
)

// FindPRURL scans text for a PR URL and returns it as a pin target.
// Best effort: false negatives fall back to branch detection.
func FindPRURL(text string) (PinTarget, bool) {
	m := prURLPattern.FindStringSubmatch(text)
	if m == nil {
		return PinTarget{}, false
	}
	number, err := strconv.Atoi(m[2])
	if err != nil || number <= 0 {
		return PinTarget{}, false
	}
	return PinTarget{Repo: m[1], Number: number}, true
}

// isPushLike reports whether a command counts as a push for iteration
// triggering and auto-pin detection.
func isPushLike(command string) bool {
	return pushCommandPattern.MatchString(command)
}

// cdPrefixDir extracts the directory from a "cd <dir> &&" command prefix.
func cdPrefixDir(command string) (string, bool) {
	m := cdPrefixPattern.FindStringSubmatch(command)
	if m == nil {
		return "", false
	}
	return m[1], true
}
