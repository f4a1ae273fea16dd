package tracker

import (
	"fmt"
	"strings"

	"github.com/mark3labs/prtrackr/internal/gh"
)

// Status icons. Merged and closed take precedence over check results; an open
// PR is red on any failure, hourglass while anything is still running, and
// green only when every check passed (or there are none).
const (
	iconMerged  = "🟣"
	iconClosed  = "⛔"
	iconFail    = "❌"
	iconPending = "⏳"
	iconPass    = "✅"
	iconPinned  = "📌"
)

// RenderView is everything the renderer needs. Pure input: rendering the same
// view twice yields byte-identical output.
type RenderView struct {
	Snapshot      *gh.Snapshot
	Pinned        bool
	AutoIterate   bool
	Iterations    int
	MaxIterations int
}

// RenderStatus formats one session's status line. It never queries anything
// and has no side effects.
func RenderStatus(v RenderView) string {
	if v.Snapshot == nil {
		if label := iterationLabel(v); label != "" {
			return "no PR · " + label
		}
		return "no PR"
	}

	snap := v.Snapshot
	parts := []string{stateIcon(snap), fmt.Sprintf("PR #%d", snap.Number)}
	if v.Pinned {
		parts[1] = iconPinned + " " + parts[1]
	}

	parts = append(parts, checksSummary(snap.Checks))

	if snap.UnresolvedThreads > 0 {
		parts = append(parts, fmt.Sprintf("%d unresolved", snap.UnresolvedThreads))
	}

	if label := iterationLabel(v); label != "" {
		parts = append(parts, label)
	}

	if snap.URL != "" {
		parts = append(parts, snap.URL)
	}

	return strings.Join(parts, " · ")
}

func stateIcon(snap *gh.Snapshot) string {
	if snap.State.Terminal() {
		// Merged and closed PRs keep their icon whatever the checks say.
		if snap.State == gh.StateMerged {
			return iconMerged
		}
		return iconClosed
	}
	switch {
	case snap.Checks.Fail > 0:
		return iconFail
	case snap.Checks.Pending > 0:
		return iconPending
	default:
		return iconPass
	}
}

func checksSummary(c gh.CheckStatus) string {
	if c.Total == 0 {
		return "no checks"
	}
	return fmt.Sprintf("✓%d ✗%d ⏳%d", c.Pass, c.Fail, c.Pending)
}

// iterationLabel shows iteration progress while auto-iterate is on, and a
// reminder of past iterations when it has been turned off mid-run.
func iterationLabel(v RenderView) string {
	if v.AutoIterate {
		return fmt.Sprintf("iter %d/%d", v.Iterations, v.MaxIterations)
	}
	if v.Iterations > 0 {
		return fmt.Sprintf("iter %d (off)", v.Iterations)
	}
	return ""
}
