// Package host is the boundary to the agent host runtime. The tracker never
// talks to the host directly: it consumes session/command events from NATS
// subjects and publishes status text, notifications, and follow-up messages
// back. Nothing behind this boundary is reimplemented here.
package host

import (
	"fmt"

	"github.com/gosimple/slug"
)

// Host event types, mirroring the host runtime's event bus.
const (
	EventSessionStart     = "session_start"
	EventSessionSwitch    = "session_switch"
	EventSessionShutdown  = "session_shutdown"
	EventInput            = "input"
	EventBeforeAgentStart = "before_agent_start"
	EventToolResult       = "tool_result"
)

// Event is a host runtime event as delivered on the bus.
// Command/Output/ExitCode are populated only for tool_result events.
type Event struct {
	Type     string `json:"type"`
	Session  string `json:"session"`
	WorkDir  string `json:"work_dir"`
	Command  string `json:"command,omitempty"`
	Output   string `json:"output,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

// Command is a control-plane message for the tracker: one of the user-facing
// sub-verbs, optionally with an argument (the pin URL).
type Command struct {
	Session string `json:"session"`
	WorkDir string `json:"work_dir,omitempty"` // sender's cwd, for sessions the tracker has not seen yet
	Verb    string `json:"verb"`               // on, off, run, reset, status, pin, unpin, toggle
	Arg     string `json:"arg,omitempty"`
}

// Runtime is the surface the tracker renders into. Implemented by Bus for
// production and by fakes in tests.
type Runtime interface {
	// SetStatus updates the single-line status slot for a session.
	SetStatus(session, text string)
	// Notify raises a user-visible toast for a session.
	Notify(session, text string)
	// FollowUp sends a scripted instruction message to the session's agent.
	FollowUp(session, text string) error
}

// Subject layout. Events come in from the host; everything under prtrackr.*
// is published by this extension.
//
//	host.events.<session>      host -> tracker (Event)
//	host.followup.<session>    tracker -> host agent inbox
//	prtrackr.status.<session>  rendered status line
//	prtrackr.notify.<session>  toast text
//	prtrackr.cmd.<session>     control verbs (request/reply)

// SubjectEvents returns the event subject for a session.
func SubjectEvents(session string) string {
	return fmt.Sprintf("host.events.%s", session)
}

// SubjectFollowUp returns the agent follow-up subject for a session.
func SubjectFollowUp(session string) string {
	return fmt.Sprintf("host.followup.%s", session)
}

// SubjectStatus returns the status-slot subject for a session.
func SubjectStatus(session string) string {
	return fmt.Sprintf("prtrackr.status.%s", session)
}

// SubjectNotify returns the notification subject for a session.
func SubjectNotify(session string) string {
	return fmt.Sprintf("prtrackr.notify.%s", session)
}

// SubjectCommand returns the control subject for a session.
func SubjectCommand(session string) string {
	return fmt.Sprintf("prtrackr.cmd.%s", session)
}

// SessionIDForDir derives the default session id from a working directory
// path. Hosts that expose real session identifiers override this; the
// fallback just needs to be stable and NATS-subject-safe.
func SessionIDForDir(dir string) string {
	if dir == "" {
		return "default"
	}
	id := slug.Make(dir)
	if id == "" {
		return "default"
	}
	return id
}
