package window

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentsolvr/shell/internal/logging"
)

var log = logging.L("window")

// Broadcaster pushes window events to connected renderers. The bridge
// server satisfies this.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Event payloads sent on window channels.
type event struct {
	WindowID string `json:"windowId"`
	Title    string `json:"title,omitempty"`
	Bounds   Bounds `json:"bounds"`
	Visible  bool   `json:"visible"`
}

// Manager owns all shell windows.
type Manager struct {
	broadcaster Broadcaster
	store       *StateStore

	mu      sync.Mutex
	windows map[string]*Window
	focus   string
}

// NewManager builds a Manager. store may be nil to disable geometry
// persistence; broadcaster may be nil in headless runs.
func NewManager(broadcaster Broadcaster, store *StateStore) *Manager {
	return &Manager{
		broadcaster: broadcaster,
		store:       store,
		windows:     make(map[string]*Window),
	}
}

// Create registers a new window. Previously saved geometry for the same
// id overrides the requested size.
func (m *Manager) Create(id string, opts Options) (*Window, error) {
	if id == "" {
		return nil, fmt.Errorf("window: empty id")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	w := &Window{
		id:        id,
		title:     opts.Title,
		bounds:    Bounds{Width: opts.Width, Height: opts.Height},
		resizable: opts.Resizable,
		visible:   opts.Show,
		createdAt: time.Now(),
	}
	if m.store != nil {
		if saved, ok := m.store.Get(id); ok {
			w.bounds = saved.Bounds
			w.visible = saved.Visible
		}
	}

	m.mu.Lock()
	if _, exists := m.windows[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("window: duplicate id %q", id)
	}
	m.windows[id] = w
	m.mu.Unlock()

	log.Info("window created", logging.KeyWindowID, id, "width", w.bounds.Width, "height", w.bounds.Height)
	m.emit("window.created", w)
	return w, nil
}

// Get returns a live window by id.
func (m *Manager) Get(id string) (*Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	return w, ok
}

// All returns every live window.
func (m *Manager) All() []*Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w)
	}
	return out
}

// Count returns the number of live windows.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Show makes a window visible and focused.
func (m *Manager) Show(id string) error {
	w, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("window: no window %q", id)
	}
	w.Show()
	m.Focus(id)
	m.emit("window.shown", w)
	return nil
}

// Hide conceals a window. Its state is persisted so a later Create
// restores it hidden.
func (m *Manager) Hide(id string) error {
	w, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("window: no window %q", id)
	}
	w.Hide()
	m.mu.Lock()
	if m.focus == id {
		m.focus = ""
	}
	m.mu.Unlock()
	m.persist(w)
	m.emit("window.hidden", w)
	return nil
}

// Focus gives a window input focus, removing it from the previous
// holder.
func (m *Manager) Focus(id string) error {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("window: no window %q", id)
	}
	if prev, ok := m.windows[m.focus]; ok && m.focus != id {
		prev.mu.Lock()
		prev.focused = false
		prev.mu.Unlock()
	}
	m.focus = id
	m.mu.Unlock()

	w.mu.Lock()
	w.focused = true
	w.visible = true
	w.mu.Unlock()
	return nil
}

// Move repositions a window and persists the new geometry.
func (m *Manager) Move(id string, b Bounds) error {
	w, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("window: no window %q", id)
	}
	w.SetBounds(b)
	m.persist(w)
	return nil
}

// Close hides a window. The window object stays alive so it can be
// shown again quickly.
func (m *Manager) Close(id string) error {
	return m.Hide(id)
}

// Destroy tears a window down and forgets it.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("window: no window %q", id)
	}
	delete(m.windows, id)
	if m.focus == id {
		m.focus = ""
	}
	m.mu.Unlock()

	m.persist(w)
	w.mu.Lock()
	w.destroyed = true
	w.visible = false
	w.mu.Unlock()

	log.Info("window destroyed", logging.KeyWindowID, id)
	m.emit("window.destroyed", w)
	return nil
}

// CloseAll hides every window.
func (m *Manager) CloseAll() {
	for _, w := range m.All() {
		m.Close(w.ID())
	}
}

// DestroyAll tears down every window, typically at shutdown.
func (m *Manager) DestroyAll() {
	for _, w := range m.All() {
		m.Destroy(w.ID())
	}
}

func (m *Manager) persist(w *Window) {
	if m.store == nil {
		return
	}
	w.mu.Lock()
	st := State{Bounds: w.bounds, Visible: w.visible}
	id := w.id
	w.mu.Unlock()
	if err := m.store.Put(id, st); err != nil {
		log.Warn("failed to persist window state", logging.KeyWindowID, id, "error", err)
	}
}

func (m *Manager) emit(channel string, w *Window) {
	if m.broadcaster == nil {
		return
	}
	w.mu.Lock()
	ev := event{WindowID: w.id, Title: w.title, Bounds: w.bounds, Visible: w.visible}
	w.mu.Unlock()
	m.broadcaster.Broadcast(channel, ev)
}
