package realtime

import (
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"gummy/pkg/envelope"
	"gummy/pkg/session"
)

// State is the channel's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const defaultReconnectDelay = 2 * time.Second

// Channel maintains the persistent push connection to the backend's
// chat socket, authenticates it with the current session credential and
// delivers decoded envelopes to registered handlers.
//
// On any unexpected close exactly one reconnection is scheduled after a
// fixed delay (deliberately not exponential — the friend channel uses a
// different policy). Missing credentials defer the attempt on the same
// delay instead of failing. Close is the only way to stop the loop.
type Channel struct {
	baseURL string
	path    string
	sess    *session.Session
	delay   time.Duration

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	handlers map[string]func(envelope.Envelope)

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a channel against the backend base URL (http/https; the
// ws scheme is derived). delay <= 0 selects the default 2s.
func New(baseURL string, sess *session.Session, delay time.Duration) *Channel {
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &Channel{
		baseURL:  strings.TrimRight(baseURL, "/"),
		path:     "/ws/chat",
		sess:     sess,
		delay:    delay,
		handlers: make(map[string]func(envelope.Envelope)),
		done:     make(chan struct{}),
	}
}

// On registers the handler for one event type. Register everything
// before Connect; the map is not guarded afterwards.
func (c *Channel) On(eventType string, fn func(envelope.Envelope)) {
	c.handlers[eventType] = fn
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect runs the connection loop until Close. Blocks; call with go.
func (c *Channel) Connect() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		token := c.sess.Token()
		if token == "" {
			log.Printf("[WS] no credential yet, retry in %s", c.delay)
			if !c.sleep() {
				return
			}
			continue
		}

		c.setState(Connecting)
		if err := c.dial(token); err != nil {
			c.setState(Disconnected)
			log.Printf("[WS] connect failed: %v — retry in %s", err, c.delay)
			if !c.sleep() {
				return
			}
			continue
		}

		c.setState(Connected)
		log.Printf("[WS] connected to %s%s", c.baseURL, c.path)
		c.readLoop()
		c.setState(Disconnected)

		select {
		case <-c.done:
			return
		default:
		}
		log.Printf("[WS] disconnected — reconnect in %s", c.delay)
		if !c.sleep() {
			return
		}
	}
}

// Send publishes an envelope, best-effort. Dropped silently when the
// channel is not connected.
func (c *Channel) Send(env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.state != Connected {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down and suppresses the reconnect
// schedule permanently. Safe to call at any time, once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = Disconnected
	c.mu.Unlock()
}

func (c *Channel) dial(token string) error {
	wsBase := c.baseURL
	wsBase = strings.Replace(wsBase, "https://", "wss://", 1)
	wsBase = strings.Replace(wsBase, "http://", "ws://", 1)
	u := wsBase + c.path + "?token=" + url.QueryEscape(token)

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// readLoop decodes and dispatches inbound envelopes until the
// connection drops. Handlers run on this goroutine, so events for a
// given connection are applied in arrival order.
func (c *Channel) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := envelope.Unmarshal(raw)
		if err != nil {
			log.Printf("[WS] malformed message dropped: %v", err)
			continue
		}
		if env.Type == "" {
			continue
		}

		fn, ok := c.handlers[env.Type]
		if !ok {
			log.Printf("[WS] unhandled event type %q", env.Type)
			continue
		}
		fn(env)
	}
}

// sleep waits out the reconnect delay; false means Close happened.
func (c *Channel) sleep() bool {
	select {
	case <-time.After(c.delay):
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
