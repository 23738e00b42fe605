// Package tray manages the system tray icon, its menu, and native
// desktop notification delivery.
package tray

import (
	"fmt"
	"sync"

	"github.com/agentsolvr/shell/internal/logging"
	"github.com/agentsolvr/shell/internal/notify"
)

var log = logging.L("tray")

// Status is the overall application state reflected by the tray icon.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusActive  Status = "active"
	StatusWorking Status = "working"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// MenuItem describes an entry in the tray menu.
type MenuItem struct {
	ID       string
	Label    string
	Tooltip  string
	Disabled bool
	OnClick  func()
}

// ui abstracts the platform tray toolkit so the menu logic can be
// tested without a desktop session.
type ui interface {
	setIcon(icon []byte)
	setTooltip(tooltip string)
	addItem(id, label, tooltip string, disabled bool)
	addSeparator()
	setItemLabel(id, label string)
	setItemDisabled(id string, disabled bool)
	hideItem(id string)
	quit()
}

const (
	maxRecentActivity  = 5
	activityLabelLimit = 50
)

// Manager owns tray state. It also implements notify.StatusSink so the
// notification center can deliver through it and drive the icon.
type Manager struct {
	appName string

	mu             sync.Mutex
	status         Status
	items          map[string]*MenuItem
	order          []string
	recent         []string
	statusHandlers []func(Status)
	ui             ui
	destroyed      bool
}

// NewManager builds a Manager with the default menu. The tray surface
// itself appears when Run is called.
func NewManager(appName string) *Manager {
	m := &Manager{
		appName: appName,
		status:  StatusIdle,
		items:   make(map[string]*MenuItem),
	}
	return m
}

// Run shows the tray icon and blocks until Quit. onReady runs once the
// tray is available; menu items registered before Run are created then.
func (m *Manager) Run(onReady func()) {
	runSystray(m, onReady)
}

// attach binds the toolkit once it is ready and replays current state.
func (m *Manager) attach(u ui) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ui = u
	u.setIcon(iconFor(m.status))
	u.setTooltip(m.tooltipLocked())
	for _, id := range m.order {
		it := m.items[id]
		if it.ID == "" {
			u.addSeparator()
			continue
		}
		u.addItem(it.ID, it.Label, it.Tooltip, it.Disabled)
	}
}

// SetStatus changes the tray icon to reflect the given status string.
// Unknown statuses are ignored with a warning.
func (m *Manager) SetStatus(status string) {
	s := Status(status)
	switch s {
	case StatusIdle, StatusActive, StatusWorking, StatusError, StatusOffline:
	default:
		log.Warn("unknown tray status", "status", status)
		return
	}

	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	handlers := append(([]func(Status))(nil), m.statusHandlers...)
	if m.ui != nil {
		m.ui.setIcon(iconFor(s))
		m.ui.setTooltip(m.tooltipLocked())
	}
	m.mu.Unlock()

	log.Debug("tray status changed", "status", status)
	for _, h := range handlers {
		h(s)
	}
}

// Status returns the current tray status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RegisterStatusHandler subscribes to status changes.
func (m *Manager) RegisterStatusHandler(h func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusHandlers = append(m.statusHandlers, h)
}

// Display shows a desktop notification through the platform notifier.
// It satisfies notify.Sink.
func (m *Manager) Display(n *notify.Notification) bool {
	ok := displayNotification(m.appName, n)
	if !ok {
		log.Warn("native notification failed", logging.KeyNotificationID, n.ID)
	}
	return ok
}

// AddMenuItem appends an item to the menu. A nil item adds a separator.
func (m *Manager) AddMenuItem(item *MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item == nil {
		sep := &MenuItem{}
		key := fmt.Sprintf("sep_%d", len(m.order))
		m.items[key] = sep
		m.order = append(m.order, key)
		if m.ui != nil {
			m.ui.addSeparator()
		}
		return nil
	}
	if item.ID == "" {
		return fmt.Errorf("tray: menu item needs an id")
	}
	if _, exists := m.items[item.ID]; exists {
		return fmt.Errorf("tray: duplicate menu item %q", item.ID)
	}
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	if m.ui != nil {
		m.ui.addItem(item.ID, item.Label, item.Tooltip, item.Disabled)
	}
	return nil
}

// UpdateMenuItem changes the label or enabled state of an existing item.
func (m *Manager) UpdateMenuItem(id, label string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("tray: no menu item %q", id)
	}
	it.Label = label
	it.Disabled = disabled
	if m.ui != nil {
		m.ui.setItemLabel(id, label)
		m.ui.setItemDisabled(id, disabled)
	}
	return nil
}

// RemoveMenuItem hides an item. The toolkit cannot truly delete
// entries, so removed items are hidden and forgotten.
func (m *Manager) RemoveMenuItem(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("tray: no menu item %q", id)
	}
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.ui != nil {
		m.ui.hideItem(id)
	}
	return nil
}

// MenuItems returns the current menu in display order, separators
// excluded.
func (m *Manager) MenuItems() []MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MenuItem, 0, len(m.order))
	for _, id := range m.order {
		it := m.items[id]
		if it.ID == "" {
			continue
		}
		out = append(out, *it)
	}
	return out
}

// AddRecentActivity records a line in the recent activity list shown in
// the menu. Only the latest entries are kept and long lines are
// truncated.
func (m *Manager) AddRecentActivity(text string) {
	if len(text) > activityLabelLimit {
		text = text[:activityLabelLimit-3] + "..."
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append([]string{text}, m.recent...)
	if len(m.recent) > maxRecentActivity {
		m.recent = m.recent[:maxRecentActivity]
	}
	m.syncActivityLocked()
}

// RecentActivity returns recorded activity lines, newest first.
func (m *Manager) RecentActivity() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.recent...)
}

// syncActivityLocked mirrors the activity list into disabled menu
// items. Caller holds mu.
func (m *Manager) syncActivityLocked() {
	if m.ui == nil {
		return
	}
	for i, text := range m.recent {
		id := fmt.Sprintf("activity_%d", i)
		if it, ok := m.items[id]; ok {
			it.Label = text
			m.ui.setItemLabel(id, text)
		} else {
			item := &MenuItem{ID: id, Label: text, Disabled: true}
			m.items[id] = item
			m.order = append(m.order, id)
			m.ui.addItem(id, text, "", true)
		}
	}
}

// handleClick runs the handler registered for a menu item.
func (m *Manager) handleClick(id string) {
	m.mu.Lock()
	it, ok := m.items[id]
	m.mu.Unlock()
	if !ok || it.OnClick == nil {
		return
	}
	log.Debug("tray menu clicked", "item", id)
	it.OnClick()
}

func (m *Manager) tooltipLocked() string {
	return fmt.Sprintf("%s (%s)", m.appName, m.status)
}

// Destroy tears the tray down. Safe to call more than once.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	u := m.ui
	m.ui = nil
	m.mu.Unlock()
	if u != nil {
		u.quit()
	}
}
