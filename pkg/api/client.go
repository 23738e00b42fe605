// Package api is a Go client for the shell's renderer bridge. Backend
// helper processes use it to call bridge channels and receive shell
// events without going through an Electron renderer.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	eventBuffer  = 64
)

// Message mirrors the bridge envelope: requests carry an id the reply
// echoes, events pushed by the shell arrive with ids of their own.
type Message struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client is a single bridge connection. Safe for concurrent Call use;
// replies are matched to requests by id, everything else is surfaced on
// Events.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Message
	closed  bool

	events   chan Message
	readDone chan struct{}
}

// Dial connects to a shell bridge at host:port using the configured
// bridge token.
func Dial(addr, token string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/bridge"}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to shell bridge at %s: %w", addr, err)
	}

	c := &Client{
		conn:     conn,
		pending:  make(map[string]chan Message),
		events:   make(chan Message, eventBuffer),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Call sends a request on the given channel and waits for the reply.
func (c *Client) Call(ctx context.Context, channel string, payload any) (json.RawMessage, error) {
	msg := Message{ID: uuid.NewString(), Channel: channel}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", channel, err)
		}
		msg.Payload = raw
	}

	reply := make(chan Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("client is closed")
	}
	c.pending[msg.ID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	if err := c.write(msg); err != nil {
		return nil, err
	}

	select {
	case res := <-reply:
		if res.Error != "" {
			return nil, fmt.Errorf("%s: %s", channel, res.Error)
		}
		return res.Payload, nil
	case <-c.readDone:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events delivers messages that are not replies to an in-flight Call,
// such as window lifecycle broadcasts. The channel is buffered; events
// are dropped once it fills rather than stalling the read loop.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Close shuts the connection down. In-flight Calls fail with a
// connection closed error.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send on %s: %w", msg.Channel, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.mu.Lock()
		reply, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			reply <- msg
			continue
		}

		select {
		case c.events <- msg:
		default:
		}
	}
}
