// Package journal records tracker side effects (iterations fired, pins set
// and cleared, caps reached) as an append-only JetStream event log. State is
// reconstructed by reducing the log on read; nothing is updated in place.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/prtrackr/internal/logger"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/xid"
)

const (
	streamName = "prtrackr_journal"

	// Event types
	EventTypeIteration = "iteration"
	EventTypePin       = "pin"
	EventTypeCap       = "cap"
)

// SubjectForSession returns the wildcard subject for all journal events of
// a session. Example: "journal.mysession.>"
func SubjectForSession(session string) string {
	return fmt.Sprintf("journal.%s.>", session)
}

// SubjectForEvent returns the specific subject for an event type.
func SubjectForEvent(session, eventType string) string {
	return fmt.Sprintf("journal.%s.%s", session, eventType)
}

// SetupStream creates or updates the journal stream with 30-day retention.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"journal.>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
}

// Event is one journal entry.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Session   string          `json:"session"`
	Type      string          `json:"type"`   // iteration, pin, cap
	Action    string          `json:"action"` // fired, set, cleared, reached
	Meta      json.RawMessage `json:"meta,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// Store appends tracker events to JetStream and reduces them back into
// per-session state.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewStore creates a Store over an existing stream.
func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{js: js, stream: stream}
}

// PublishEvent appends an event to the journal.
func (s *Store) PublishEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal journal event: %w", err)
	}

	subject := SubjectForEvent(event.Session, event.Type)
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish journal event: %w", err)
	}

	logger.Debug("Journal event published: session=%s type=%s action=%s",
		event.Session, event.Type, event.Action)
	return nil
}

// IterationFired records one fired iteration.
func (s *Store) IterationFired(ctx context.Context, session string, number, pr int) error {
	meta, _ := json.Marshal(map[string]any{"number": number, "pr": pr})
	return s.PublishEvent(ctx, Event{
		Session: session,
		Type:    EventTypeIteration,
		Action:  "fired",
		Meta:    meta,
	})
}

// PinSet records a pin being adopted (explicitly or via auto-pin).
func (s *Store) PinSet(ctx context.Context, session, pin string) error {
	return s.PublishEvent(ctx, Event{
		Session: session,
		Type:    EventTypePin,
		Action:  "set",
		Data:    pin,
	})
}

// PinCleared records a pin being dropped.
func (s *Store) PinCleared(ctx context.Context, session string) error {
	return s.PublishEvent(ctx, Event{
		Session: session,
		Type:    EventTypePin,
		Action:  "cleared",
	})
}

// CapReached records the iteration cap forcing auto-iterate off.
func (s *Store) CapReached(ctx context.Context, session string, count int) error {
	meta, _ := json.Marshal(map[string]any{"count": count})
	return s.PublishEvent(ctx, Event{
		Session: session,
		Type:    EventTypeCap,
		Action:  "reached",
		Meta:    meta,
	})
}

// FiredIteration is one reduced iteration record.
type FiredIteration struct {
	Number  int       `json:"number"`
	PR      int       `json:"pr"`
	FiredAt time.Time `json:"fired_at"`
}

// State is the reduced journal state for one session.
type State struct {
	Session    string           `json:"session"`
	Iterations []FiredIteration `json:"iterations"`
	Pin        string           `json:"pin"` // current pin, empty if cleared
	CapReached bool             `json:"cap_reached"`
}

// Apply folds one event into the state.
func (st *State) Apply(event Event) {
	switch event.Type {
	case EventTypeIteration:
		if event.Action != "fired" {
			return
		}
		var meta struct {
			Number int `json:"number"`
			PR     int `json:"pr"`
		}
		_ = json.Unmarshal(event.Meta, &meta)
		st.Iterations = append(st.Iterations, FiredIteration{
			Number:  meta.Number,
			PR:      meta.PR,
			FiredAt: event.Timestamp,
		})

	case EventTypePin:
		switch event.Action {
		case "set":
			st.Pin = event.Data
		case "cleared":
			st.Pin = ""
		}

	case EventTypeCap:
		if event.Action == "reached" {
			st.CapReached = true
		}
	}
}

// LoadState reduces all journal events for a session into a State.
func (s *Store) LoadState(ctx context.Context, session string) (*State, error) {
	consumer, err := s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: SubjectForSession(session),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	state := &State{Session: session}

	const batchSize = 1000
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}

		msgCount := 0
		for msg := range msgs.Messages() {
			msgCount++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				meta, _ := msg.Metadata()
				logger.Warn("Skipping malformed journal event (seq=%d): %v", meta.Sequence.Stream, err)
				_ = msg.Ack()
				continue
			}
			state.Apply(event)
			_ = msg.Ack()
		}

		if msgCount < batchSize {
			break
		}
	}

	return state, nil
}
