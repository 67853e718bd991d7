package friends

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/sethvargo/go-retry"

	"gummy/pkg/envelope"
	"gummy/pkg/session"
)

// Event is a friend-relationship notification. Unlike the chat channel
// the payload fields ride flat on the message.
type Event struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	SenderName   string `json:"senderName,omitempty"`
	SenderAvatar string `json:"senderAvatar,omitempty"`
	UserName     string `json:"userName,omitempty"`
	UserAvatar   string `json:"userAvatar,omitempty"`
}

var errClosed = errors.New("notifier closed")

// Notifier is the friend-notification channel. Its retry policy is
// deliberately different from the chat channel's fixed delay:
// exponential backoff from one second, capped at a bounded number of
// attempts, after which the channel gives up for good.
type Notifier struct {
	baseURL     string
	sess        *session.Session
	baseDelay   time.Duration
	maxAttempts uint64

	mu   sync.Mutex
	conn *websocket.Conn

	handlers map[string]func(Event)

	done      chan struct{}
	closeOnce sync.Once
}

func New(baseURL string, sess *session.Session) *Notifier {
	return &Notifier{
		baseURL:     strings.TrimRight(baseURL, "/"),
		sess:        sess,
		baseDelay:   time.Second,
		maxAttempts: 3,
		handlers:    make(map[string]func(Event)),
		done:        make(chan struct{}),
	}
}

// On registers the callback for one event type (see the
// friend-channel constants in pkg/envelope). Register before Connect.
func (n *Notifier) On(eventType string, fn func(Event)) {
	n.handlers[eventType] = fn
}

// Connect runs the connection loop until Close or until the bounded
// reconnect budget is exhausted. Blocks; call with go.
func (n *Notifier) Connect() {
	for {
		select {
		case <-n.done:
			return
		default:
		}

		b := retry.WithMaxRetries(n.maxAttempts, retry.NewExponential(n.baseDelay))
		err := retry.Do(context.Background(), b, func(ctx context.Context) error {
			select {
			case <-n.done:
				return errClosed
			default:
			}
			if err := n.dial(); err != nil {
				log.Printf("[FRIENDS] connect failed: %v", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if errors.Is(err, errClosed) {
			return
		}
		if err != nil {
			log.Printf("[FRIENDS] reconnect attempts exhausted: %v", err)
			return
		}

		log.Printf("[FRIENDS] connected")
		n.readLoop()

		select {
		case <-n.done:
			return
		default:
		}
		log.Printf("[FRIENDS] disconnected — reconnecting with backoff")
	}
}

// Close tears down the connection and stops the retry loop.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.done)
	})
	n.mu.Lock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	n.mu.Unlock()
}

func (n *Notifier) dial() error {
	wsBase := n.baseURL
	wsBase = strings.Replace(wsBase, "https://", "wss://", 1)
	wsBase = strings.Replace(wsBase, "http://", "ws://", 1)
	u := wsBase + "/ws/friends"
	if tok := n.sess.Token(); tok != "" {
		u += "?token=" + url.QueryEscape(tok)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	return nil
}

func (n *Notifier) readLoop() {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("[FRIENDS] malformed message dropped: %v", err)
			continue
		}

		switch ev.Type {
		case envelope.EventFriendRequestReceived,
			envelope.EventFriendRequestAccepted,
			envelope.EventFriendRemoved:
			if fn, ok := n.handlers[ev.Type]; ok {
				fn(ev)
			}
		default:
			log.Printf("[FRIENDS] unknown event type %q", ev.Type)
		}
	}
}
