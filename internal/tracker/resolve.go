package tracker

import "github.com/mark3labs/prtrackr/internal/gh"

// resolveAndRenderLocked re-queries the session's PR and pushes the rendered
// status line to the host. Resolution priority: pin first, then the current
// branch. A query that returns nothing keeps the previous snapshot so a flaky
// gh call never blanks the status line; a branch switch is the one event that
// clears it, immediately and before any new query resolves.
func (t *Tracker) resolveAndRenderLocked(s *Session) string {
	branch, err := t.git.CurrentBranch(s.WorkDir)
	if err != nil {
		branch = ""
	}

	if branch != "" && s.LastBranch != "" && branch != s.LastBranch {
		// The old branch's PR must never be shown against the new branch,
		// not even for one render.
		s.LastSnapshot = nil
		t.renderLocked(s)
	}
	if branch != "" {
		s.LastBranch = branch
	}

	if s.Pin != nil {
		t.resolvePinnedLocked(s, branch)
	} else if branch != "" {
		if snap := t.queries.SnapshotByBranch(s.WorkDir, branch); snap != nil {
			s.LastSnapshot = snap
			if s.RepoID == nil {
				s.RepoID = t.queries.RepoIdentity(s.WorkDir)
			}
		}
	}

	return t.renderLocked(s)
}

// resolvePinnedLocked resolves a pinned session. The pin is dropped the
// moment the session's own branch grows an open PR of its own; until then the
// pinned PR wins over whatever the branch points at.
func (t *Tracker) resolvePinnedLocked(s *Session, branch string) {
	if branch != "" {
		if own := t.queries.SnapshotByBranch(s.WorkDir, branch); own != nil && own.State == gh.StateOpen {
			if s.Pin.Number != own.Number || (s.RepoID != nil && s.Pin.Repo != s.RepoID.String()) {
				t.clearPinLocked(s)
				s.LastSnapshot = own
				return
			}
		}
	}

	if snap := t.queries.SnapshotByNumber(s.WorkDir, s.Pin.Repo, s.Pin.Number); snap != nil {
		s.LastSnapshot = snap
	}
}

// renderLocked renders the session's current view and publishes it.
func (t *Tracker) renderLocked(s *Session) string {
	text := RenderStatus(RenderView{
		Snapshot:      s.LastSnapshot,
		Pinned:        s.Pin != nil,
		AutoIterate:   s.AutoIterate,
		Iterations:    s.IterationCount,
		MaxIterations: t.cfg.MaxIterations,
	})
	t.rt.SetStatus(s.ID, text)
	return text
}
