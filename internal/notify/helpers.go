package notify

import (
	"fmt"
	"time"
)

// ShowClaudeNotification reports the state of a backend AI operation.
// Notifications for the same operation replace each other so a
// completion supersedes the in-progress notice.
func (c *Center) ShowClaudeNotification(operation, status, message string) (string, error) {
	id := fmt.Sprintf("claude_%s_%d", operation, time.Now().Unix())
	n := New(id, claudeTitle(operation, status), message)
	n.GroupID = "claude_operations"
	n.Source = "claude"

	switch status {
	case "started":
		n.Type = TypeActivity
		n.Priority = PriorityNormal
		n.Icon = "claude_working"
		n.Duration = 0
	case "completed":
		n.Type = TypeSuccess
		n.Priority = PriorityNormal
		n.Icon = "claude_success"
	case "failed":
		n.Type = TypeError
		n.Priority = PriorityNormal
		n.Icon = "claude_error"
		n.Duration = 0
	default:
		n.Type = TypeInfo
		n.Priority = PriorityNormal
		n.Icon = "claude_info"
	}

	c.setTrayStatus(claudeTrayStatus(status))
	return c.Show(n)
}

func claudeTitle(operation, status string) string {
	switch status {
	case "started":
		return fmt.Sprintf("Claude %s in progress", operation)
	case "completed":
		return fmt.Sprintf("Claude %s completed", operation)
	case "failed":
		return fmt.Sprintf("Claude %s failed", operation)
	default:
		return fmt.Sprintf("Claude %s: %s", operation, status)
	}
}

func claudeTrayStatus(status string) string {
	switch status {
	case "started":
		return "working"
	case "completed":
		return "idle"
	case "failed":
		return "error"
	default:
		return ""
	}
}

// ShowSystemStatus reports a component state change. Repeated changes
// for the same component share a group so stale states can be swept.
func (c *Center) ShowSystemStatus(component, status, message string) (string, error) {
	id := fmt.Sprintf("system_%s_%s", component, status)
	n := New(id, fmt.Sprintf("%s %s", component, status), message)
	n.GroupID = "system_" + component
	n.Source = "system"
	n.Icon = "status_" + status

	switch status {
	case "connected":
		n.Type = TypeSuccess
		n.Priority = PriorityNormal
	case "disconnected":
		n.Type = TypeWarning
		n.Priority = PriorityNormal
	case "error":
		n.Type = TypeError
		n.Priority = PriorityHigh
		n.Duration = 0
	case "warning":
		n.Type = TypeWarning
		n.Priority = PriorityNormal
	case "maintenance":
		n.Type = TypeInfo
		n.Priority = PriorityNormal
	default:
		n.Type = TypeStatus
		n.Priority = PriorityNormal
		n.Icon = "status_warning"
	}

	if component == "claude" {
		c.setTrayStatus(componentTrayStatus(status))
	}
	return c.Show(n)
}

func componentTrayStatus(status string) string {
	switch status {
	case "connected":
		return "active"
	case "disconnected":
		return "offline"
	case "error":
		return "error"
	default:
		return ""
	}
}

// ShowCostAlert warns when API spend approaches or exceeds the budget
// for a billing period. The alert turns into a warning at 80% of the
// budget and escalates to high priority once the budget is exceeded.
func (c *Center) ShowCostAlert(current, limit float64, period string) (string, error) {
	if limit <= 0 {
		return "", fmt.Errorf("cost limit must be positive, got %v", limit)
	}
	pct := current / limit * 100

	id := fmt.Sprintf("cost_alert_%s", period)
	n := New(id, "", fmt.Sprintf("$%.2f of $%.2f %s budget used (%.0f%%)", current, limit, period, pct))
	n.GroupID = "cost_monitoring"
	n.Source = "cost_monitor"
	n.Icon = "cost_warning"
	n.ReplaceID = id

	switch {
	case pct >= 100:
		n.Title = "Cost limit exceeded"
		n.Type = TypeWarning
		n.Priority = PriorityHigh
		n.Duration = 0
	case pct >= 80:
		n.Title = "Cost limit warning"
		n.Type = TypeWarning
		n.Priority = PriorityNormal
	default:
		n.Title = "Cost update"
		n.Type = TypeInfo
		n.Priority = PriorityNormal
	}
	return c.Show(n)
}

// ShowProgress shows or updates a persistent progress notification for
// a long-running operation. progress is 0.0 to 1.0.
func (c *Center) ShowProgress(operation string, progress float64, text string) (string, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	id := fmt.Sprintf("progress_%s", operation)
	n := New(id, operation, text)
	n.Type = TypeProgress
	n.Priority = PriorityNormal
	n.Duration = 0
	n.ReplaceID = id
	n.Progress = &ProgressInfo{Value: progress, Text: text}
	return c.Show(n)
}

func (c *Center) setTrayStatus(status string) {
	if status == "" {
		return
	}
	if s, ok := c.sink.(StatusSink); ok {
		s.SetStatus(status)
	}
}
