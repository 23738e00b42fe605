// Package control exposes a local command endpoint used by the CLI to
// talk to a running shell.
package control

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/agentsolvr/shell/internal/ipc"
	"github.com/agentsolvr/shell/internal/logging"
)

var log = logging.L("control")

const (
	// idleTimeout disconnects clients that go quiet.
	idleTimeout = 5 * time.Minute

	rateLimitAttempts = 10
	rateLimitWindow   = time.Minute
)

// Handlers are the operations a running shell exposes on the control
// endpoint. Nil handlers answer with an error.
type Handlers struct {
	Status       func(verbose bool) (*ipc.StatusResult, error)
	Notify       func(req ipc.NotifyRequest) (*ipc.NotifyResult, error)
	Dismiss      func(req ipc.DismissRequest) (*ipc.Result, error)
	Clear        func() (*ipc.Result, error)
	DoNotDisturb func(req ipc.DoNotDisturbRequest) (*ipc.Result, error)
	UpdateCheck  func(req ipc.UpdateCheckRequest) (*ipc.UpdateResult, error)
}

// Server accepts control connections on a local socket.
type Server struct {
	path     string
	key      []byte
	handlers Handlers

	rateLimiter *ipc.RateLimiter
	listener    net.Listener

	mu     sync.Mutex
	closed bool
}

// NewServer builds a control server. key is the shared HMAC secret from
// ipc.LoadOrCreateKey.
func NewServer(path string, key []byte, h Handlers) *Server {
	return &Server{
		path:        path,
		key:         key,
		handlers:    h,
		rateLimiter: ipc.NewRateLimiter(rateLimitAttempts, rateLimitWindow),
	}
}

// Listen starts accepting connections and blocks until stop is closed.
func (s *Server) Listen(stop <-chan struct{}) error {
	ln, err := listenSocket(s.path)
	if err != nil {
		return fmt.Errorf("control: listen: %w", err)
	}
	s.listener = ln
	log.Info("control endpoint listening", "path", s.path)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				s.mu.Lock()
				closed := s.closed
				s.mu.Unlock()
				if closed {
					return
				}
				log.Warn("accept error", "error", err)
				continue
			}
			go s.handleConnection(conn)
		}
	}()

	<-stop
	s.Close()
	return nil
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
	cleanupSocket(s.path)
}

func (s *Server) handleConnection(raw net.Conn) {
	if !s.rateLimiter.Allow("local") {
		log.Warn("control connection rate limited")
		raw.Close()
		return
	}

	conn := ipc.NewConn(raw, s.key)
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		env, err := conn.Recv()
		if err != nil {
			return
		}
		if env.Type == ipc.TypeDisconnect {
			return
		}
		s.dispatch(conn, env)
	}
}

func (s *Server) dispatch(conn *ipc.Conn, env *ipc.Envelope) {
	reply, replyType, err := s.handle(env)
	if err != nil {
		log.Warn("control request failed", "type", env.Type, "error", err)
		conn.SendError(env.ID, ipc.TypeResult, err.Error())
		return
	}
	if err := conn.SendTyped(env.ID, replyType, reply); err != nil {
		log.Warn("control reply failed", "type", replyType, "error", err)
	}
}

func (s *Server) handle(env *ipc.Envelope) (any, string, error) {
	switch env.Type {
	case ipc.TypePing:
		return ipc.Result{OK: true, Message: "pong"}, ipc.TypePong, nil

	case ipc.TypeStatus:
		if s.handlers.Status == nil {
			return nil, "", fmt.Errorf("status not available")
		}
		var req ipc.StatusRequest
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				return nil, "", fmt.Errorf("bad status request: %w", err)
			}
		}
		res, err := s.handlers.Status(req.Verbose)
		if err != nil {
			return nil, "", err
		}
		return res, ipc.TypeStatusResult, nil

	case ipc.TypeNotify:
		if s.handlers.Notify == nil {
			return nil, "", fmt.Errorf("notify not available")
		}
		var req ipc.NotifyRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, "", fmt.Errorf("bad notify request: %w", err)
		}
		if req.Title == "" {
			return nil, "", fmt.Errorf("notify requires a title")
		}
		res, err := s.handlers.Notify(req)
		if err != nil {
			return nil, "", err
		}
		return res, ipc.TypeNotifyResult, nil

	case ipc.TypeDismiss:
		if s.handlers.Dismiss == nil {
			return nil, "", fmt.Errorf("dismiss not available")
		}
		var req ipc.DismissRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, "", fmt.Errorf("bad dismiss request: %w", err)
		}
		res, err := s.handlers.Dismiss(req)
		if err != nil {
			return nil, "", err
		}
		return res, ipc.TypeResult, nil

	case ipc.TypeClear:
		if s.handlers.Clear == nil {
			return nil, "", fmt.Errorf("clear not available")
		}
		res, err := s.handlers.Clear()
		if err != nil {
			return nil, "", err
		}
		return res, ipc.TypeResult, nil

	case ipc.TypeDoNotDisturb:
		if s.handlers.DoNotDisturb == nil {
			return nil, "", fmt.Errorf("do_not_disturb not available")
		}
		var req ipc.DoNotDisturbRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return nil, "", fmt.Errorf("bad do_not_disturb request: %w", err)
		}
		res, err := s.handlers.DoNotDisturb(req)
		if err != nil {
			return nil, "", err
		}
		return res, ipc.TypeResult, nil

	case ipc.TypeUpdateCheck:
		if s.handlers.UpdateCheck == nil {
			return nil, "", fmt.Errorf("update_check not available")
		}
		var req ipc.UpdateCheckRequest
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				return nil, "", fmt.Errorf("bad update_check request: %w", err)
			}
		}
		res, err := s.handlers.UpdateCheck(req)
		if err != nil {
			return nil, "", err
		}
		return res, ipc.TypeUpdateResult, nil

	default:
		return nil, "", fmt.Errorf("unknown request type %q", env.Type)
	}
}
