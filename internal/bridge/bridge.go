// Package bridge connects the renderer to backend helper services. It
// manages service processes and routes channel messages between the
// renderer websocket and registered handlers.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/agentsolvr/shell/internal/health"
	"github.com/agentsolvr/shell/internal/logging"
)

var log = logging.L("bridge")

// Handler processes a message on a channel and returns the reply
// payload.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Bridge routes channel messages and owns the backend service registry.
type Bridge struct {
	mu       sync.RWMutex
	services map[string]*Service
	handlers map[string]Handler
	monitor  *health.Monitor
}

// New builds a Bridge reporting service health into monitor.
func New(monitor *health.Monitor) *Bridge {
	b := &Bridge{
		services: make(map[string]*Service),
		handlers: make(map[string]Handler),
		monitor:  monitor,
	}
	b.registerBuiltins()
	return b
}

// RegisterService adds a service to the registry.
func (b *Bridge) RegisterService(s *Service) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.services[s.Name()]; exists {
		return fmt.Errorf("bridge: service %s already registered", s.Name())
	}
	b.services[s.Name()] = s
	return nil
}

// Service looks up a registered service.
func (b *Bridge) Service(name string) (*Service, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.services[name]
	return s, ok
}

// Services returns snapshots of all registered services, sorted by name.
func (b *Bridge) Services() []Info {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Info, 0, len(b.services))
	for _, s := range b.services {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterHandler binds a handler to a channel. Registering a channel
// twice is an error so wiring mistakes fail at startup.
func (b *Bridge) RegisterHandler(channel string, h Handler) error {
	if channel == "" {
		return fmt.Errorf("bridge: empty channel name")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[channel]; exists {
		return fmt.Errorf("bridge: channel %s already registered", channel)
	}
	b.handlers[channel] = h
	return nil
}

// HandleMessage dispatches a payload to the channel's handler. Handler
// panics are recovered and returned as errors.
func (b *Bridge) HandleMessage(ctx context.Context, channel string, payload json.RawMessage) (result json.RawMessage, err error) {
	b.mu.RLock()
	h, ok := b.handlers[channel]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bridge: unknown channel %q", channel)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", logging.KeyChannel, channel, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("bridge: handler for %s panicked: %v", channel, r)
		}
	}()

	out, err := h(ctx, payload)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	raw, merr := json.Marshal(out)
	if merr != nil {
		return nil, fmt.Errorf("bridge: marshal reply for %s: %w", channel, merr)
	}
	return raw, nil
}

// StartAll starts every registered service and updates health state.
func (b *Bridge) StartAll(ctx context.Context) {
	for _, info := range b.Services() {
		s, _ := b.Service(info.Name)
		if err := s.Start(ctx); err != nil {
			log.Error("service failed to start", logging.KeyService, info.Name, "error", err)
			b.updateHealth(s)
			continue
		}
		b.updateHealth(s)
	}
}

// StopAll stops every registered service.
func (b *Bridge) StopAll() {
	for _, info := range b.Services() {
		s, _ := b.Service(info.Name)
		if err := s.Stop(); err != nil {
			log.Warn("service failed to stop", logging.KeyService, info.Name, "error", err)
		}
		b.updateHealth(s)
	}
}

func (b *Bridge) updateHealth(s *Service) {
	if b.monitor == nil {
		return
	}
	switch s.State() {
	case ServiceRunning:
		b.monitor.Update("service:"+s.Name(), health.Healthy, "")
	case ServiceFailed:
		msg := ""
		if info := s.Snapshot(); info.LastError != "" {
			msg = info.LastError
		}
		b.monitor.Update("service:"+s.Name(), health.Unhealthy, msg)
	default:
		b.monitor.Update("service:"+s.Name(), health.Degraded, "stopped")
	}
}

type serviceRequest struct {
	Name string `json:"name"`
}

// registerBuiltins wires the service control channels.
func (b *Bridge) registerBuiltins() {
	// Started processes must outlive the request, so the dispatch
	// context is not handed to Start.
	b.handlers["service.start"] = func(_ context.Context, payload json.RawMessage) (any, error) {
		s, err := b.serviceFor(payload)
		if err != nil {
			return nil, err
		}
		if err := s.Start(context.Background()); err != nil {
			b.updateHealth(s)
			return nil, err
		}
		b.updateHealth(s)
		return s.Snapshot(), nil
	}
	b.handlers["service.stop"] = func(_ context.Context, payload json.RawMessage) (any, error) {
		s, err := b.serviceFor(payload)
		if err != nil {
			return nil, err
		}
		if err := s.Stop(); err != nil {
			return nil, err
		}
		b.updateHealth(s)
		return s.Snapshot(), nil
	}
	b.handlers["service.restart"] = func(_ context.Context, payload json.RawMessage) (any, error) {
		s, err := b.serviceFor(payload)
		if err != nil {
			return nil, err
		}
		if err := s.Restart(context.Background()); err != nil {
			b.updateHealth(s)
			return nil, err
		}
		b.updateHealth(s)
		return s.Snapshot(), nil
	}
	b.handlers["service.status"] = func(_ context.Context, payload json.RawMessage) (any, error) {
		var req serviceRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("bridge: parse request: %w", err)
			}
		}
		if req.Name == "" {
			return b.Services(), nil
		}
		s, ok := b.Service(req.Name)
		if !ok {
			return nil, fmt.Errorf("bridge: unknown service %q", req.Name)
		}
		return s.Snapshot(), nil
	}
	b.handlers["ping"] = func(context.Context, json.RawMessage) (any, error) {
		return map[string]string{"reply": "pong"}, nil
	}
}

func (b *Bridge) serviceFor(payload json.RawMessage) (*Service, error) {
	var req serviceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("bridge: parse request: %w", err)
	}
	s, ok := b.Service(req.Name)
	if !ok {
		return nil, fmt.Errorf("bridge: unknown service %q", req.Name)
	}
	return s, nil
}
