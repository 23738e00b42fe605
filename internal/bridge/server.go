package bridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentsolvr/shell/internal/ipc"
	"github.com/agentsolvr/shell/internal/logging"
	"github.com/agentsolvr/shell/internal/workerpool"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

// Message is the envelope exchanged with renderer clients. Requests
// carry an id the reply echoes; events pushed by the shell get fresh
// ids.
type Message struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Server exposes the bridge to renderer processes over a localhost
// websocket.
type Server struct {
	bridge *Bridge
	token  string
	pool   *workerpool.Pool

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener
	connRate *ipc.RateLimiter

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewServer builds a renderer-facing server. token guards the upgrade
// handshake; connections without it are rejected.
func NewServer(b *Bridge, token string, pool *workerpool.Pool) *Server {
	return &Server{
		bridge: b,
		token:  token,
		pool:   pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Renderer connects from a file:// or app:// origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		connRate: ipc.NewRateLimiter(10, time.Minute),
		clients:  make(map[*client]struct{}),
	}
}

// Bind claims addr without serving, so callers can surface bind errors
// synchronously and read Addr before starting Serve. addr must be a
// loopback address.
func (s *Server) Bind(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("bridge: bad listen addr %q: %w", addr, err)
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("bridge: refusing non-loopback listen addr %q", addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge: listen %s: %w", addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleUpgrade)
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

// Serve accepts renderer connections on the bound listener and blocks
// until Shutdown. Bind must be called first.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("bridge: Serve called before Bind")
	}
	log.Info("bridge server listening", "addr", s.listener.Addr().String())
	if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Listen binds addr and serves until Shutdown.
func (s *Server) Listen(addr string) error {
	if err := s.Bind(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Addr returns the bound address, empty before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown closes the listener and all client connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	if !s.connRate.Allow(host) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	got := r.URL.Query().Get("token")
	if got == "" {
		got = r.Header.Get("X-Bridge-Token")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
		log.Warn("bridge connection rejected", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	log.Info("renderer connected", "remote", r.RemoteAddr)
	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.close()
		log.Info("renderer disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("malformed bridge message", "error", err)
			continue
		}
		if msg.Channel == "" {
			continue
		}

		m := msg
		dispatched := s.pool.Submit(func() { s.dispatch(c, m) })
		if !dispatched {
			s.reply(c, Message{ID: m.ID, Channel: m.Channel, Error: "bridge busy"})
		}
	}
}

func (s *Server) dispatch(c *client, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.bridge.HandleMessage(ctx, msg.Channel, msg.Payload)
	reply := Message{ID: msg.ID, Channel: msg.Channel, Payload: result}
	if err != nil {
		reply.Error = err.Error()
		log.Warn("channel handler failed", logging.KeyChannel, msg.Channel, "error", err)
	}
	s.reply(c, reply)
}

func (s *Server) reply(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("marshal reply", "error", err)
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		log.Warn("send buffer full, dropping reply", logging.KeyChannel, msg.Channel)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast pushes an event to every connected renderer.
func (s *Server) Broadcast(channel string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("marshal broadcast", logging.KeyChannel, channel, "error", err)
		return
	}
	msg := Message{ID: uuid.NewString(), Channel: channel, Payload: raw}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			log.Warn("client send buffer full, dropping event", logging.KeyChannel, channel)
		}
	}
}

// ClientCount returns the number of connected renderers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
