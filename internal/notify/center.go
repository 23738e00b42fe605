package notify

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentsolvr/shell/internal/logging"
)

var log = logging.L("notify")

// ErrNotRunning is returned by operations that require a started Center.
var ErrNotRunning = errors.New("notification center not running")

// Sink displays notifications on the desktop. Display reports whether
// the notification was shown.
type Sink interface {
	Display(n *Notification) bool
}

// StatusSink is implemented by sinks that can also reflect an overall
// application status, such as a tray icon.
type StatusSink interface {
	Sink
	SetStatus(status string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n *Notification) bool

func (f SinkFunc) Display(n *Notification) bool { return f(n) }

// Config controls Center behavior. Zero values fall back to defaults.
type Config struct {
	// MaxSimultaneous caps how many notifications are on screen at once.
	MaxSimultaneous int
	// QueueLimit is a soft cap on the pending queue. Exceeding it only
	// logs a warning.
	QueueLimit int
	// HistoryLimit caps the dismissed-notification history.
	HistoryLimit int
	// MaxPerMinute rate limits deliveries. 0 disables the limit.
	MaxPerMinute int
}

func (c *Config) applyDefaults() {
	if c.MaxSimultaneous <= 0 {
		c.MaxSimultaneous = 3
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = 50
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
}

// Stats is a point-in-time snapshot of center counters.
type Stats struct {
	TotalSent           uint64 `json:"total_sent"`
	DismissedCount      uint64 `json:"dismissed_count"`
	ActionClicks        uint64 `json:"action_clicks"`
	ClaudeNotifications uint64 `json:"claude_notifications"`
	SystemNotifications uint64 `json:"system_notifications"`
	ActiveCount         int    `json:"active_count"`
	QueueSize           int    `json:"queue_size"`
	HistoryCount        int    `json:"history_count"`
	DoNotDisturb        bool   `json:"do_not_disturb"`
}

const (
	popTimeout      = time.Second
	capacityBackoff = 500 * time.Millisecond
)

// Center queues, rate limits, and delivers desktop notifications. All
// methods are safe for concurrent use.
type Center struct {
	cfg  Config
	sink Sink

	queue   *queue
	limiter *rate.Limiter

	mu      sync.Mutex
	running bool
	active  map[string]*Notification
	timers  map[string]*time.Timer
	history []*Notification

	dnd      bool
	dndTimer *time.Timer

	totalSent      uint64
	dismissedCount uint64
	actionClicks   uint64
	claudeCount    uint64
	systemCount    uint64

	stop chan struct{}
	done chan struct{}
}

// NewCenter builds a Center delivering through sink.
func NewCenter(cfg Config, sink Sink) *Center {
	cfg.applyDefaults()
	c := &Center{
		cfg:    cfg,
		sink:   sink,
		queue:  newQueue(),
		active: make(map[string]*Notification),
		timers: make(map[string]*time.Timer),
	}
	if cfg.MaxPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.MaxPerMinute)/60.0), cfg.MaxPerMinute)
	}
	return c
}

// Start launches the delivery worker. Calling Start on a running center
// is a no-op.
func (c *Center) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.deliverLoop()
	log.Info("notification center started",
		"max_simultaneous", c.cfg.MaxSimultaneous,
		"queue_limit", c.cfg.QueueLimit)
}

// Stop halts delivery and waits for the worker to exit. Active
// notifications stay visible; queued ones are discarded.
func (c *Center) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	done := c.done
	if c.dndTimer != nil {
		c.dndTimer.Stop()
		c.dndTimer = nil
	}
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	c.queue.wake()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("delivery worker did not stop in time")
	}
	log.Info("notification center stopped")
}

// Show queues a notification for delivery and returns its id. When do
// not disturb is on, notifications below critical priority are dropped
// silently; the id is still returned so callers can reference it.
func (c *Center) Show(n *Notification) (string, error) {
	if n.ID == "" {
		n.ID = generateID(n.Title, time.Now())
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return "", ErrNotRunning
	}
	if c.dnd && n.Priority < PriorityCritical {
		c.mu.Unlock()
		log.Debug("notification suppressed by do not disturb", logging.KeyNotificationID, n.ID)
		return n.ID, nil
	}
	c.mu.Unlock()

	if n.ReplaceID != "" {
		if !c.dismiss(n.ReplaceID, "replaced") {
			c.queue.remove(n.ReplaceID)
		}
	}

	c.queue.push(n)
	if size := c.queue.len(); size > c.cfg.QueueLimit {
		log.Warn("notification queue above limit", "size", size, "limit", c.cfg.QueueLimit)
	}
	log.Debug("notification queued",
		logging.KeyNotificationID, n.ID,
		"priority", n.Priority.String(),
		"type", string(n.Type))
	return n.ID, nil
}

func (c *Center) deliverLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		n, seq, ok := c.queue.popWait(popTimeout)
		if !ok {
			continue
		}

		if c.limiter != nil {
			r := c.limiter.Reserve()
			if delay := r.Delay(); delay > 0 {
				select {
				case <-time.After(delay):
				case <-c.stop:
					r.Cancel()
					c.queue.pushSeq(n, seq)
					return
				}
			}
		}

		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return
		}
		if len(c.active) >= c.cfg.MaxSimultaneous {
			c.mu.Unlock()
			c.queue.pushSeq(n, seq)
			select {
			case <-time.After(capacityBackoff):
			case <-c.stop:
				return
			}
			continue
		}
		c.promote(n)
		c.mu.Unlock()

		if c.sink != nil {
			c.sink.Display(n)
		}
		log.Info("notification delivered",
			logging.KeyNotificationID, n.ID,
			"title", n.Title,
			"priority", n.Priority.String())
	}
}

// promote moves a notification into the active set and records it in
// history. Caller holds mu.
func (c *Center) promote(n *Notification) {
	c.active[n.ID] = n
	c.appendHistory(n)
	c.totalSent++
	switch n.Source {
	case "claude":
		c.claudeCount++
	case "system":
		c.systemCount++
	}
	if n.Duration > 0 {
		id := n.ID
		c.timers[id] = time.AfterFunc(n.Duration, func() {
			c.dismiss(id, "auto_dismissed")
		})
	}
}

// Dismiss removes a notification from the active set. Queued
// notifications that were never displayed are not dismissable.
func (c *Center) Dismiss(id string) bool {
	return c.dismiss(id, "dismissed")
}

func (c *Center) dismiss(id, reason string) bool {
	c.mu.Lock()
	n, wasActive := c.active[id]
	if wasActive {
		delete(c.active, id)
		if t, ok := c.timers[id]; ok {
			t.Stop()
			delete(c.timers, id)
		}
		c.dismissedCount++
	}
	c.mu.Unlock()

	if !wasActive {
		return false
	}
	if n.OnDismiss != nil {
		runCallback("dismiss", id, func() { n.OnDismiss.HandleDismiss(n, reason) })
	}
	log.Debug("notification dismissed", logging.KeyNotificationID, id, "reason", reason)
	return true
}

// DismissGroup dismisses every active and queued notification in the
// group and returns how many were affected.
func (c *Center) DismissGroup(groupID string) int {
	c.mu.Lock()
	var dismissed []*Notification
	for id, n := range c.active {
		if n.GroupID == groupID {
			delete(c.active, id)
			if t, ok := c.timers[id]; ok {
				t.Stop()
				delete(c.timers, id)
			}
			c.dismissedCount++
			dismissed = append(dismissed, n)
		}
	}
	c.mu.Unlock()

	for _, n := range dismissed {
		if n.OnDismiss != nil {
			runCallback("dismiss", n.ID, func() { n.OnDismiss.HandleDismiss(n, "group_dismissed") })
		}
	}
	queued := c.queue.removeGroup(groupID)
	total := len(dismissed) + len(queued)
	if total > 0 {
		log.Debug("group dismissed", "group", groupID, "count", total)
	}
	return total
}

// ClearAll dismisses every active notification and discards anything
// still queued. The returned count is the size of the active set at
// call time; pending notifications were never shown and do not count.
func (c *Center) ClearAll() int {
	c.mu.Lock()
	var dismissed []*Notification
	for id, n := range c.active {
		delete(c.active, id)
		if t, ok := c.timers[id]; ok {
			t.Stop()
			delete(c.timers, id)
		}
		c.dismissedCount++
		dismissed = append(dismissed, n)
	}
	c.mu.Unlock()

	for _, n := range dismissed {
		if n.OnDismiss != nil {
			runCallback("dismiss", n.ID, func() { n.OnDismiss.HandleDismiss(n, "cleared_all") })
		}
	}
	if queued := c.queue.drain(); len(queued) > 0 {
		log.Debug("pending notifications discarded", "count", len(queued))
	}
	return len(dismissed)
}

// SetDoNotDisturb toggles suppression of sub-critical notifications.
// A non-zero duration re-enables delivery automatically when it
// elapses; toggling again cancels any pending expiry.
func (c *Center) SetDoNotDisturb(enabled bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dndTimer != nil {
		c.dndTimer.Stop()
		c.dndTimer = nil
	}
	c.dnd = enabled
	if enabled && duration > 0 {
		c.dndTimer = time.AfterFunc(duration, func() {
			c.mu.Lock()
			c.dnd = false
			c.dndTimer = nil
			c.mu.Unlock()
			log.Info("do not disturb expired")
		})
	}
	log.Info("do not disturb changed", "enabled", enabled, "duration", duration.String())
}

// DoNotDisturb reports whether suppression is currently on.
func (c *Center) DoNotDisturb() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dnd
}

// InvokeAction runs the named action on an active notification. value
// is passed through to input actions.
func (c *Center) InvokeAction(id, actionID, value string) bool {
	c.mu.Lock()
	n, ok := c.active[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	for _, a := range n.Actions {
		if a.ID() == actionID {
			c.mu.Lock()
			c.actionClicks++
			c.mu.Unlock()
			runCallback("action", id, func() { a.Invoke(n, value) })
			return true
		}
	}
	return false
}

// Click runs a notification's click handler and counts it as an action.
func (c *Center) Click(id string) bool {
	c.mu.Lock()
	n, ok := c.active[id]
	if ok {
		c.actionClicks++
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	if n.OnClick != nil {
		runCallback("click", id, func() { n.OnClick() })
	}
	return true
}

// runCallback invokes a user-supplied callback, recovering and logging
// any panic so a broken handler cannot take down the center.
func runCallback(what, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("notification callback panicked",
				logging.KeyNotificationID, id,
				"callback", what,
				"panic", r)
		}
	}()
	fn()
}

// Active returns the currently displayed notifications.
func (c *Center) Active() []*Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Notification, 0, len(c.active))
	for _, n := range c.active {
		out = append(out, n)
	}
	return out
}

// Get returns an active notification by id.
func (c *Center) Get(id string) (*Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.active[id]
	return n, ok
}

// History returns every notification that reached the screen, newest
// last. Entries are recorded at display time, not at dismissal.
func (c *Center) History() []*Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Notification, len(c.history))
	copy(out, c.history)
	return out
}

// Stats returns a snapshot of center counters.
func (c *Center) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalSent:           c.totalSent,
		DismissedCount:      c.dismissedCount,
		ActionClicks:        c.actionClicks,
		ClaudeNotifications: c.claudeCount,
		SystemNotifications: c.systemCount,
		ActiveCount:         len(c.active),
		QueueSize:           c.queue.len(),
		HistoryCount:        len(c.history),
		DoNotDisturb:        c.dnd,
	}
}

// appendHistory records a displayed notification. Caller holds mu.
func (c *Center) appendHistory(n *Notification) {
	c.history = append(c.history, n)
	if len(c.history) > c.cfg.HistoryLimit {
		c.history = c.history[len(c.history)-c.cfg.HistoryLimit:]
	}
}
