package notify

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Type classifies a notification for presentation purposes.
type Type string

const (
	TypeInfo           Type = "info"
	TypeSuccess        Type = "success"
	TypeWarning        Type = "warning"
	TypeError          Type = "error"
	TypeProgress       Type = "progress"
	TypeActivity       Type = "activity"
	TypeStatus         Type = "status"
	TypeActionRequired Type = "action_required"
)

// Priority orders notification delivery. Higher values dequeue first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Action is an interactive element attached to a notification.
// Concrete variants are ButtonAction, InputAction, and DismissAction.
type Action interface {
	// ID identifies the action within its notification.
	ID() string
	// Label is the text shown to the user.
	Label() string
	// Invoke runs the action's behavior. value carries user input for
	// input actions and is empty otherwise.
	Invoke(n *Notification, value string)
}

// ButtonAction runs a callback when clicked.
type ButtonAction struct {
	ActionID string
	Text     string
	OnClick  func(n *Notification)
}

func (a ButtonAction) ID() string    { return a.ActionID }
func (a ButtonAction) Label() string { return a.Text }
func (a ButtonAction) Invoke(n *Notification, _ string) {
	if a.OnClick != nil {
		a.OnClick(n)
	}
}

// InputAction collects a text value from the user.
type InputAction struct {
	ActionID string
	Text     string
	OnSubmit func(n *Notification, value string)
}

func (a InputAction) ID() string    { return a.ActionID }
func (a InputAction) Label() string { return a.Text }
func (a InputAction) Invoke(n *Notification, value string) {
	if a.OnSubmit != nil {
		a.OnSubmit(n, value)
	}
}

// DismissAction closes the notification without further behavior.
type DismissAction struct {
	ActionID string
	Text     string
}

func (a DismissAction) ID() string                       { return a.ActionID }
func (a DismissAction) Label() string                    { return a.Text }
func (a DismissAction) Invoke(_ *Notification, _ string) {}

// DismissHandler is invoked when a notification leaves the active set.
type DismissHandler interface {
	HandleDismiss(n *Notification, reason string)
}

// DismissFunc adapts a plain function to DismissHandler.
type DismissFunc func(n *Notification, reason string)

func (f DismissFunc) HandleDismiss(n *Notification, reason string) { f(n, reason) }

// ProgressInfo carries completion state for progress notifications.
type ProgressInfo struct {
	Value float64 // 0.0 - 1.0
	Text  string
}

// Notification is a desktop notification record. It is immutable once
// handed to a Center; callers must not mutate it after Show.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Type      Type
	Priority  Priority
	Timestamp time.Time

	// Duration the notification stays on screen. 0 means persistent.
	Duration time.Duration
	Icon     string

	Actions   []Action
	OnClick   func()
	OnDismiss DismissHandler

	Progress *ProgressInfo

	// GroupID tags related notifications for bulk dismissal.
	GroupID string
	// ReplaceID names a currently active notification to evict before
	// this one is queued.
	ReplaceID string

	Source string
	Tags   []string
}

// DefaultDuration is applied when a notification is created without one.
const DefaultDuration = 5 * time.Second

// New builds a notification with sensible defaults. An empty id is
// generated from the creation time and a hash of the title.
func New(id, title, message string) *Notification {
	now := time.Now()
	if id == "" {
		id = generateID(title, now)
	}
	return &Notification{
		ID:        id,
		Title:     title,
		Message:   message,
		Type:      TypeInfo,
		Priority:  PriorityNormal,
		Timestamp: now,
		Duration:  DefaultDuration,
		Source:    "system",
	}
}

func generateID(title string, ts time.Time) string {
	h := fnv.New32a()
	h.Write([]byte(title))
	return fmt.Sprintf("notif_%d_%08x", ts.UnixMilli(), h.Sum32())
}
