package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()

	ns, _, err := StartEmbedded(t.TempDir())
	require.NoError(t, err, "start embedded NATS")
	t.Cleanup(ns.Shutdown)

	nc, err := ConnectInProcess(ns)
	require.NoError(t, err, "connect in-process")
	t.Cleanup(nc.Close)

	return NewBus(nc)
}

func TestBus_EventRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan Event, 1)
	sub, err := bus.SubscribeEvents(func(ev Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	want := Event{
		Type:    EventToolResult,
		Session: "alpha",
		WorkDir: "/work/app",
		Command: "git push",
	}
	require.NoError(t, bus.PublishEvent(want))
	require.NoError(t, bus.Flush())

	select {
	case got := <-received:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_CommandRequestReply(t *testing.T) {
	bus := newTestBus(t)

	sub, err := bus.SubscribeCommands(func(cmd Command) string {
		require.Equal(t, "status", cmd.Verb)
		return "no PR"
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	reply, err := bus.SendCommand(Command{Session: "alpha", Verb: "status"})
	require.NoError(t, err)
	require.Equal(t, "no PR", reply)
}

func TestBus_StatusFanOut(t *testing.T) {
	bus := newTestBus(t)

	type update struct{ session, text string }
	received := make(chan update, 2)
	sub, err := bus.SubscribeStatus(func(session, text string) {
		received <- update{session, text}
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	bus.SetStatus("alpha", "✅ · PR #42")
	bus.SetStatus("beta", "no PR")
	require.NoError(t, bus.Flush())

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case u := <-received:
			got[u.session] = u.text
		case <-time.After(2 * time.Second):
			t.Fatal("status updates not delivered")
		}
	}
	require.Equal(t, "✅ · PR #42", got["alpha"])
	require.Equal(t, "no PR", got["beta"])
}

func TestBus_MalformedEventSkipped(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan Event, 1)
	sub, err := bus.SubscribeEvents(func(ev Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	require.NoError(t, bus.nc.Publish(SubjectEvents("alpha"), []byte("not json")))
	require.NoError(t, bus.PublishEvent(Event{Type: EventInput, Session: "alpha"}))
	require.NoError(t, bus.Flush())

	select {
	case got := <-received:
		require.Equal(t, EventInput, got.Type, "malformed event must be skipped, not crash the handler")
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSessionIDForDir(t *testing.T) {
	require.Equal(t, "default", SessionIDForDir(""))
	require.NotEmpty(t, SessionIDForDir("/work/My App"))
	require.Equal(t, SessionIDForDir("/work/app"), SessionIDForDir("/work/app"))
	require.NotContains(t, SessionIDForDir("/work/app"), " ")
}

func TestShutdownCollectsNoErrorsOnCleanPath(t *testing.T) {
	ns, port, err := StartEmbedded(t.TempDir())
	require.NoError(t, err)
	nc, err := ConnectToPort(port)
	require.NoError(t, err)

	require.NoError(t, Shutdown(nc, ns))
	require.NoError(t, Shutdown(nil, nil))
}

func TestConnectToPortFailsFast(t *testing.T) {
	_, err := ConnectToPort(1) // nothing listens there
	require.Error(t, err)
}

func TestTryConnectExisting_NoPortFile(t *testing.T) {
	require.Nil(t, TryConnectExisting(t.TempDir()))
}

var _ Runtime = (*Bus)(nil)
