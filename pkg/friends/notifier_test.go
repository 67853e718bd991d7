package friends

import (
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"gummy/pkg/envelope"
	"gummy/pkg/session"
)

func startFriendServer(t *testing.T, conns *int32, handler func(*websocket.Conn)) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/friends", websocket.New(func(c *websocket.Conn) {
		atomic.AddInt32(conns, 1)
		handler(c)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func writeEvent(t *testing.T, c *websocket.Conn, ev Event) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, data))
}

func TestNotifierDeliversEvents(t *testing.T) {
	var conns int32
	url := startFriendServer(t, &conns, func(c *websocket.Conn) {
		writeEvent(t, c, Event{
			Type:       envelope.EventFriendRequestReceived,
			Message:    "maria sent you a friend request",
			SenderName: "maria",
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	received := make(chan Event, 1)
	n := New(url, session.New("tok"))
	n.baseDelay = 10 * time.Millisecond
	n.On(envelope.EventFriendRequestReceived, func(ev Event) { received <- ev })
	go n.Connect()
	defer n.Close()

	select {
	case ev := <-received:
		require.Equal(t, "maria", ev.SenderName)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for friend event")
	}
}

func TestNotifierIgnoresUnknownEvents(t *testing.T) {
	var conns int32
	url := startFriendServer(t, &conns, func(c *websocket.Conn) {
		writeEvent(t, c, Event{Type: "something_else"})
		writeEvent(t, c, Event{Type: envelope.EventFriendRemoved, UserName: "joao"})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	received := make(chan Event, 2)
	n := New(url, session.New("tok"))
	n.baseDelay = 10 * time.Millisecond
	n.On(envelope.EventFriendRemoved, func(ev Event) { received <- ev })
	go n.Connect()
	defer n.Close()

	select {
	case ev := <-received:
		require.Equal(t, envelope.EventFriendRemoved, ev.Type)
		require.Equal(t, "joao", ev.UserName)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for friend event")
	}
}

func TestNotifierReconnectsWithFreshBudgetAfterDrop(t *testing.T) {
	var conns int32
	url := startFriendServer(t, &conns, func(c *websocket.Conn) {
		// Returning drops the connection; each drop re-enters the
		// loop with a fresh retry budget.
	})

	n := New(url, session.New("tok"))
	n.baseDelay = 10 * time.Millisecond
	go n.Connect()
	defer n.Close()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&conns) >= 3 },
		3*time.Second, 10*time.Millisecond)
}

func TestNotifierGivesUpAfterBoundedAttempts(t *testing.T) {
	// Reserve a port and close it so every dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	n := New(url, session.New("tok"))
	n.baseDelay = 5 * time.Millisecond
	n.maxAttempts = 2

	done := make(chan struct{})
	go func() {
		n.Connect()
		close(done)
	}()

	select {
	case <-done:
		// Gave up permanently, as intended.
	case <-time.After(3 * time.Second):
		t.Fatal("notifier kept retrying past its bounded budget")
	}
}

func TestNotifierCloseStopsLoop(t *testing.T) {
	var conns int32
	url := startFriendServer(t, &conns, func(c *websocket.Conn) {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	n := New(url, session.New("tok"))
	n.baseDelay = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		n.Connect()
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&conns) >= 1 },
		3*time.Second, 10*time.Millisecond)
	n.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Connect did not return after Close")
	}
}
