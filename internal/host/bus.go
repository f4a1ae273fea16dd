package host

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/prtrackr/internal/logger"
	"github.com/nats-io/nats.go"
)

// commandTimeout bounds control-plane request/reply round trips.
const commandTimeout = 3 * time.Second

// Bus implements Runtime over a NATS connection.
type Bus struct {
	nc *nats.Conn
}

// NewBus wraps an existing NATS connection.
func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

// SetStatus publishes the rendered status line for a session.
// Publish failures are logged and swallowed: a missed status update is
// corrected by the next tick.
func (b *Bus) SetStatus(session, text string) {
	if err := b.nc.Publish(SubjectStatus(session), []byte(text)); err != nil {
		logger.Warn("Failed to publish status for %s: %v", session, err)
	}
}

// Notify publishes a toast notification for a session.
func (b *Bus) Notify(session, text string) {
	if err := b.nc.Publish(SubjectNotify(session), []byte(text)); err != nil {
		logger.Warn("Failed to publish notification for %s: %v", session, err)
	}
}

// FollowUp sends an instruction message to the session's agent.
// Unlike status updates, a lost follow-up means a lost iteration, so the
// error is returned to the caller.
func (b *Bus) FollowUp(session, text string) error {
	if err := b.nc.Publish(SubjectFollowUp(session), []byte(text)); err != nil {
		return fmt.Errorf("failed to publish follow-up: %w", err)
	}
	return nil
}

// SubscribeEvents delivers every host event to handler.
// The subscription covers all sessions; per-session demux happens in the
// tracker's session table.
func (b *Bus) SubscribeEvents(handler func(Event)) (*nats.Subscription, error) {
	return b.nc.Subscribe("host.events.>", func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn("Skipping malformed host event on %s: %v", msg.Subject, err)
			return
		}
		handler(ev)
	})
}

// SubscribeCommands delivers control verbs to handler. The handler's return
// value is sent back as the reply when the requester asked for one (the
// `status` verb uses this to read the current status line).
func (b *Bus) SubscribeCommands(handler func(Command) string) (*nats.Subscription, error) {
	return b.nc.Subscribe("prtrackr.cmd.>", func(msg *nats.Msg) {
		var cmd Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			logger.Warn("Skipping malformed command on %s: %v", msg.Subject, err)
			return
		}
		reply := handler(cmd)
		if msg.Reply != "" {
			if err := msg.Respond([]byte(reply)); err != nil {
				logger.Warn("Failed to reply to command %s: %v", cmd.Verb, err)
			}
		}
	})
}

// SendCommand publishes a control verb to a running tracker and waits for
// its reply.
func (b *Bus) SendCommand(cmd Command) (string, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal command: %w", err)
	}

	msg, err := b.nc.Request(SubjectCommand(cmd.Session), data, commandTimeout)
	if err != nil {
		return "", fmt.Errorf("no tracker answered %q: %w", cmd.Verb, err)
	}
	return string(msg.Data), nil
}

// PublishEvent publishes a host event. Used by the host adapter shims and
// by tests; the production host publishes its own events.
func (b *Bus) PublishEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.nc.Publish(SubjectEvents(ev.Session), data)
}

// SubscribeStatus delivers rendered status lines for all sessions.
// Used by the watch TUI.
func (b *Bus) SubscribeStatus(handler func(session, text string)) (*nats.Subscription, error) {
	return b.nc.Subscribe("prtrackr.status.>", func(msg *nats.Msg) {
		session := msg.Subject[len("prtrackr.status."):]
		handler(session, string(msg.Data))
	})
}

// Flush flushes the underlying connection. Tests use it to make publishes
// observable before asserting.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}
