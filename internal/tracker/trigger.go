package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/prtrackr/internal/errors"
	"github.com/mark3labs/prtrackr/internal/hooks"
	"github.com/mark3labs/prtrackr/internal/logger"
	"github.com/mark3labs/prtrackr/internal/template"
)

// armIterationLocked schedules a debounced iteration after a successful push.
// Rapid successive pushes collapse into one trigger: each push cancels the
// previous timer and starts a new one. The cap is enforced here, before
// scheduling, so the push that would exceed it disables auto-iterate instead
// of firing.
func (t *Tracker) armIterationLocked(s *Session) {
	if !s.AutoIterate {
		return
	}
	if s.Pin == nil && s.LastSnapshot == nil {
		logger.Debug("Push in session %s but no PR resolved, not arming", s.ID)
		return
	}

	if s.IterationCount >= t.cfg.MaxIterations {
		s.AutoIterate = false
		s.cancelPending()
		logger.Info("Session %s hit iteration cap (%d), auto-iterate disabled", s.ID, t.cfg.MaxIterations)
		t.rt.Notify(s.ID, fmt.Sprintf("auto-iterate off: iteration cap (%d) reached", t.cfg.MaxIterations))
		if t.journal != nil {
			if err := t.journal.CapReached(context.Background(), s.ID, s.IterationCount); err != nil {
				logger.Warn("Failed to journal cap for %s: %v", s.ID, err)
			}
		}
		t.renderLocked(s)
		return
	}

	s.cancelPending()
	gen := s.pendingGen
	id := s.ID
	s.pending = t.afterFunc(t.cfg.Debounce, func() {
		// Runs on a timer goroutine; a panic escaping here would kill the
		// whole process instead of one iteration.
		if err := errors.Recover(func() error {
			t.fire(id, gen)
			return nil
		}); err != nil {
			logger.Error("Iteration trigger failed for session %s: %v", id, err)
		}
	})
	logger.Debug("Iteration armed for session %s (debounce=%s)", s.ID, t.cfg.Debounce)
}

// fire sends one follow-up iteration to the session's agent. gen guards
// debounced firings against supersession and teardown; a negative gen is an
// explicit run-once and skips the check. Hooks and message building run
// outside the lock since hooks may take many seconds.
func (t *Tracker) fire(id string, gen int) {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if !ok || (gen >= 0 && (s.pendingGen != gen || !s.AutoIterate)) {
		t.mu.Unlock()
		return
	}
	s.pending = nil
	s.IterationCount++
	iteration := s.IterationCount
	workDir := s.WorkDir
	prNumber, prURL := s.targetPR()
	t.mu.Unlock()

	hookOutput := t.runHooks(workDir, id, iteration, prNumber)

	msg, err := template.BuildFollowUp(template.BuildConfig{
		Session:      id,
		Iteration:    iteration,
		MaxIteration: t.cfg.MaxIterations,
		PRNumber:     prNumber,
		PRURL:        prURL,
		CITimeout:    t.cfg.CITimeout,
		ReviewSettle: t.cfg.ReviewSettle,
		TemplatePath: t.cfg.TemplatePath,
		HookOutput:   hookOutput,
	})
	if err != nil {
		logger.Error("Failed to build follow-up for session %s: %v", id, err)
		return
	}

	if err := t.rt.FollowUp(id, msg); err != nil {
		logger.Error("Failed to send follow-up for session %s: %v", id, err)
		return
	}
	logger.Info("Iteration %d fired for session %s (PR #%d)", iteration, id, prNumber)

	if t.journal != nil {
		if err := t.journal.IterationFired(context.Background(), id, iteration, prNumber); err != nil {
			logger.Warn("Failed to journal iteration for %s: %v", id, err)
		}
	}

	t.mu.Lock()
	if s, ok := t.sessions[id]; ok {
		t.renderLocked(s)
	}
	t.mu.Unlock()
}

// targetPR returns the PR number and URL the iteration refers to, preferring
// the pin over the last snapshot.
func (s *Session) targetPR() (int, string) {
	number := 0
	url := ""
	if s.LastSnapshot != nil {
		number = s.LastSnapshot.Number
		url = s.LastSnapshot.URL
	}
	if s.Pin != nil {
		number = s.Pin.Number
	}
	return number, url
}

// runHooks executes on_iteration hooks and returns their piped output.
// Hook problems never block the iteration.
func (t *Tracker) runHooks(workDir, session string, iteration, pr int) string {
	cfg, err := hooks.LoadConfig(workDir)
	if err != nil {
		logger.Warn("Ignoring broken hooks config in %s: %v", workDir, err)
		return ""
	}
	if cfg == nil || len(cfg.Hooks.OnIteration) == 0 {
		return ""
	}

	out, err := hooks.ExecuteAllPiped(context.Background(), cfg.Hooks.OnIteration, workDir, hooks.Variables{
		Session:   session,
		Iteration: strconv.Itoa(iteration),
		PR:        strconv.Itoa(pr),
	})
	if err != nil {
		logger.Warn("Hooks aborted for session %s: %v", session, err)
		return ""
	}
	return out
}
