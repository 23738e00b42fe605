package ipc

import "encoding/json"

// Message type constants for control endpoint communication.
const (
	TypePing = "ping"
	TypePong = "pong"

	TypeStatus       = "status"
	TypeStatusResult = "status_result"

	TypeNotify       = "notify"
	TypeNotifyResult = "notify_result"
	TypeDismiss      = "dismiss"
	TypeClear        = "clear"

	TypeDoNotDisturb = "do_not_disturb"

	TypeUpdateCheck  = "update_check"
	TypeUpdateResult = "update_result"

	TypeResult     = "result"
	TypeDisconnect = "disconnect"
)

// MaxMessageSize is the maximum size of a JSON control message (1MB).
const MaxMessageSize = 1024 * 1024

// ProtocolVersion is the current control protocol version.
const ProtocolVersion = 1

// Envelope is the wire-format wrapper for all control messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// StatusRequest asks the shell for its current state.
type StatusRequest struct {
	Verbose bool `json:"verbose,omitempty"`
}

// StatusResult describes the running shell.
type StatusResult struct {
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptimeSeconds"`
	PID           int             `json:"pid"`
	CPUPercent    float64         `json:"cpuPercent"`
	MemoryMB      float64         `json:"memoryMb"`
	Notifications json.RawMessage `json:"notifications,omitempty"`
	Services      json.RawMessage `json:"services,omitempty"`
	UpdateState   string          `json:"updateState,omitempty"`
	Windows       int             `json:"windows"`
}

// NotifyRequest asks the shell to show a desktop notification.
type NotifyRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Group    string `json:"group,omitempty"`
	Duration int    `json:"durationMs,omitempty"`
}

// NotifyResult is the shell's response after queueing a notification.
type NotifyResult struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

// DismissRequest removes a notification or a whole group.
type DismissRequest struct {
	ID    string `json:"id,omitempty"`
	Group string `json:"group,omitempty"`
}

// DoNotDisturbRequest toggles notification suppression.
type DoNotDisturbRequest struct {
	Enabled         bool `json:"enabled"`
	DurationSeconds int  `json:"durationSeconds,omitempty"`
}

// UpdateCheckRequest triggers an update check.
type UpdateCheckRequest struct {
	Channel string `json:"channel,omitempty"`
}

// UpdateResult reports the outcome of an update check.
type UpdateResult struct {
	State     string `json:"state"`
	Current   string `json:"current"`
	Available string `json:"available,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Result is a generic acknowledgement payload.
type Result struct {
	OK      bool   `json:"ok"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}
