// Package tracker is the core of prtrackr: a per-session PR status tracker
// with a shared poll loop and a bounded, debounced auto-iteration trigger.
// All session state lives in one table guarded by one lock; handlers and the
// poll loop are serialized so session state never needs finer-grained
// synchronization.
package tracker

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/prtrackr/internal/errors"
	"github.com/mark3labs/prtrackr/internal/gh"
	"github.com/mark3labs/prtrackr/internal/host"
	"github.com/mark3labs/prtrackr/internal/logger"
)

// Querier answers PR queries for a working directory. Implemented by
// gh.Client in production and by fakes in tests. A nil result means "no
// answer right now": no PR, or a transient failure.
type Querier interface {
	SnapshotByBranch(dir, branch string) *gh.Snapshot
	SnapshotByNumber(dir, repo string, number int) *gh.Snapshot
	RepoIdentity(dir string) *gh.RepoIdentity
}

// BranchReader reports the current git branch of a working directory.
// Implemented by git.CLI.
type BranchReader interface {
	CurrentBranch(dir string) (string, error)
}

// Journal records tracker side effects durably. Optional; a nil journal
// disables recording without changing tracker behavior.
type Journal interface {
	IterationFired(ctx context.Context, session string, number, pr int) error
	PinSet(ctx context.Context, session, pin string) error
	PinCleared(ctx context.Context, session string) error
	CapReached(ctx context.Context, session string, count int) error
}

// Config holds the tracker's tunables.
type Config struct {
	PollInterval  time.Duration
	Debounce      time.Duration
	MaxIterations int
	AutoIterate   bool // default for new sessions
	CITimeout     time.Duration
	ReviewSettle  time.Duration
	TemplatePath  string
}

// Tracker owns the session table and drives status resolution.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	rt       host.Runtime
	queries  Querier
	git      BranchReader
	journal  Journal
	sessions map[string]*Session

	// Shared ticker, started when the first session appears and stopped when
	// the last one is removed.
	ticker     *time.Ticker
	tickerDone chan struct{}

	// afterFunc schedules the debounced iteration trigger. Tests replace it
	// to fire synchronously.
	afterFunc func(d time.Duration, fn func()) *time.Timer

	stopped bool
}

// New creates a Tracker. journal may be nil.
func New(cfg Config, rt host.Runtime, queries Querier, git BranchReader, journal Journal) *Tracker {
	return &Tracker{
		cfg:       cfg,
		rt:        rt,
		queries:   queries,
		git:       git,
		journal:   journal,
		sessions:  make(map[string]*Session),
		afterFunc: time.AfterFunc,
	}
}

// HandleEvent processes one host event. Panics in handlers are contained so
// a single bad event cannot take down the extension.
func (t *Tracker) HandleEvent(ev host.Event) {
	err := errors.Recover(func() error {
		switch ev.Type {
		case host.EventSessionShutdown:
			t.removeSession(ev.Session)
		case host.EventToolResult:
			t.handleToolResult(ev)
		case host.EventSessionStart, host.EventSessionSwitch,
			host.EventInput, host.EventBeforeAgentStart:
			t.mu.Lock()
			s := t.getOrCreateLocked(ev.Session, ev.WorkDir)
			t.resolveAndRenderLocked(s)
			t.mu.Unlock()
		default:
			logger.Debug("Ignoring host event type %q for session %s", ev.Type, ev.Session)
		}
		return nil
	})
	if err != nil {
		logger.Error("Event handler failed (type=%s session=%s): %v", ev.Type, ev.Session, err)
	}
}

// handleToolResult reacts to completed shell commands: refreshes status, and
// on a successful push-like command arms the iteration trigger and performs
// auto-pin detection.
func (t *Tracker) handleToolResult(ev host.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getOrCreateLocked(ev.Session, ev.WorkDir)

	if ev.ExitCode != 0 || !isPushLike(ev.Command) {
		return
	}

	logger.Debug("Push detected in session %s: %s", s.ID, ev.Command)

	if s.Pin == nil {
		t.autoPinLocked(s, ev)
	}

	t.resolveAndRenderLocked(s)
	t.armIterationLocked(s)
}

// autoPinLocked adopts a pin from push output (a PR URL printed by gh) or,
// failing that, from the PR of a different working tree the push ran in via
// a "cd <dir> &&" prefix.
func (t *Tracker) autoPinLocked(s *Session, ev host.Event) {
	if pin, ok := FindPRURL(ev.Command + "\n" + ev.Output); ok {
		t.setPinLocked(s, pin)
		return
	}

	dir, ok := cdPrefixDir(ev.Command)
	if !ok || dir == s.WorkDir {
		return
	}

	branch, err := t.git.CurrentBranch(dir)
	if err != nil || branch == "" {
		return
	}
	snap := t.queries.SnapshotByBranch(dir, branch)
	if snap == nil {
		return
	}
	id := t.queries.RepoIdentity(dir)
	if id == nil {
		return
	}
	t.setPinLocked(s, PinTarget{Repo: id.String(), Number: snap.Number})
}

func (t *Tracker) setPinLocked(s *Session, pin PinTarget) {
	s.Pin = &pin
	logger.Info("Session %s pinned to %s", s.ID, pin)
	if t.journal != nil {
		if err := t.journal.PinSet(context.Background(), s.ID, pin.String()); err != nil {
			logger.Warn("Failed to journal pin for %s: %v", s.ID, err)
		}
	}
}

func (t *Tracker) clearPinLocked(s *Session) {
	if s.Pin == nil {
		return
	}
	s.Pin = nil
	logger.Info("Session %s unpinned", s.ID)
	if t.journal != nil {
		if err := t.journal.PinCleared(context.Background(), s.ID); err != nil {
			logger.Warn("Failed to journal unpin for %s: %v", s.ID, err)
		}
	}
}

// getOrCreateLocked returns the session record, creating it on first sight.
// The working directory is refreshed on every event so a host that moves a
// session between directories is always tracked at its current location.
func (t *Tracker) getOrCreateLocked(id, workDir string) *Session {
	if id == "" {
		id = host.SessionIDForDir(workDir)
	}
	s, ok := t.sessions[id]
	if !ok {
		s = &Session{ID: id, AutoIterate: t.cfg.AutoIterate}
		t.sessions[id] = s
		t.ensureTickerLocked()
		logger.Info("Tracking new session %s (workdir=%s)", id, workDir)
	}
	if workDir != "" && workDir != s.WorkDir {
		s.WorkDir = workDir
	}
	return s
}

// removeSession drops all state for a session and cancels any pending
// iteration trigger so nothing fires after teardown.
func (t *Tracker) removeSession(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return
	}
	s.cancelPending()
	delete(t.sessions, id)
	logger.Info("Session %s removed", id)

	if len(t.sessions) == 0 {
		t.stopTickerLocked()
	}
}

// ensureTickerLocked starts the shared poll loop if it is not running.
func (t *Tracker) ensureTickerLocked() {
	if t.ticker != nil || t.stopped {
		return
	}
	t.ticker = time.NewTicker(t.cfg.PollInterval)
	done := make(chan struct{})
	t.tickerDone = done
	ticker := t.ticker
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
	logger.Debug("Poll loop started (interval=%s)", t.cfg.PollInterval)
}

func (t *Tracker) stopTickerLocked() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.tickerDone)
	t.ticker = nil
	t.tickerDone = nil
	logger.Debug("Poll loop stopped")
}

// Tick resolves and re-renders every tracked session once. A failure in one
// session never prevents the others from updating.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sessions {
		s := s
		err := errors.Recover(func() error {
			t.resolveAndRenderLocked(s)
			return nil
		})
		if err != nil {
			logger.Error("Poll failed for session %s: %v", s.ID, err)
		}
	}
}

// Stop shuts the tracker down: stops the poll loop and cancels every pending
// iteration trigger. Safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	t.stopTickerLocked()
	for _, s := range t.sessions {
		s.cancelPending()
	}
}

// HandleCommand dispatches one control verb and returns the user-facing
// reply text. A run-once verb fires its iteration here, after dispatch has
// released the tracker lock.
func (t *Tracker) HandleCommand(cmd host.Command) string {
	var reply, fireID string
	err := errors.Recover(func() error {
		reply, fireID = t.dispatch(cmd)
		return nil
	})
	if err == nil && fireID != "" {
		err = errors.Recover(func() error {
			t.fire(fireID, -1)
			return nil
		})
	}
	if err != nil {
		logger.Error("Command %q failed for session %s: %v", cmd.Verb, cmd.Session, err)
		return "internal error, see log"
	}
	return reply
}

// dispatch handles one verb under the lock. fireID is non-empty when the verb
// asks for an immediate iteration, which must run unlocked.
func (t *Tracker) dispatch(cmd host.Command) (reply, fireID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getOrCreateLocked(cmd.Session, cmd.WorkDir)

	switch cmd.Verb {
	case "on":
		return t.enableLocked(s), ""
	case "off":
		return t.disableLocked(s), ""
	case "", "toggle":
		if s.AutoIterate {
			return t.disableLocked(s), ""
		}
		return t.enableLocked(s), ""
	case "run":
		// Run-once ignores the enabled flag and any pending debounce.
		s.cancelPending()
		return "iteration sent", s.ID
	case "reset":
		return t.resetLocked(s), ""
	case "status":
		return t.resolveAndRenderLocked(s), ""
	case "pin":
		return t.pinLocked(s, cmd.Arg), ""
	case "unpin":
		return t.unpinLocked(s), ""
	default:
		return "unknown verb: " + cmd.Verb, ""
	}
}

// enableLocked turns auto-iterate on and resets the iteration budget, so a
// fresh enable always gets the full cap.
func (t *Tracker) enableLocked(s *Session) string {
	s.AutoIterate = true
	s.IterationCount = 0
	t.resolveAndRenderLocked(s)
	return "auto-iterate on"
}

// disableLocked turns auto-iterate off and cancels any pending trigger.
// The iteration count is preserved for the status line.
func (t *Tracker) disableLocked(s *Session) string {
	s.AutoIterate = false
	s.cancelPending()
	t.resolveAndRenderLocked(s)
	return "auto-iterate off"
}

func (t *Tracker) resetLocked(s *Session) string {
	s.IterationCount = 0
	s.cancelPending()
	t.resolveAndRenderLocked(s)
	return "iteration counter reset"
}

// pinLocked pins the session to a PR by URL or bare number. A bare number
// resolves against the session's own repository.
func (t *Tracker) pinLocked(s *Session, arg string) string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "usage: pin <pr-url | pr-number>"
	}

	var pin PinTarget
	if n, err := strconv.Atoi(arg); err == nil {
		if n <= 0 {
			return "invalid PR number: " + arg
		}
		if s.RepoID == nil {
			s.RepoID = t.queries.RepoIdentity(s.WorkDir)
		}
		if s.RepoID == nil {
			return "cannot resolve repository; pin with a full PR URL"
		}
		pin = PinTarget{Repo: s.RepoID.String(), Number: n}
	} else {
		found, ok := FindPRURL(arg)
		if !ok {
			return "not a PR URL or number: " + arg
		}
		pin = found
	}

	t.setPinLocked(s, pin)
	s.LastSnapshot = nil
	t.resolveAndRenderLocked(s)
	return "pinned to " + pin.String()
}

// unpinLocked drops the pin and re-resolves from the branch. The retained
// snapshot is cleared first so a branch with no PR shows "no PR" instead of
// the stale pinned view.
func (t *Tracker) unpinLocked(s *Session) string {
	if s.Pin == nil {
		return "no pin set"
	}
	t.clearPinLocked(s)
	s.LastSnapshot = nil
	t.resolveAndRenderLocked(s)
	return "unpinned"
}

// Sessions returns a point-in-time list of tracked session ids. Used by the
// MCP surface and by tests.
func (t *Tracker) Sessions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	return ids
}
