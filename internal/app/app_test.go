package app

import (
	"testing"
	"time"

	"github.com/agentsolvr/shell/internal/ipc"
	"github.com/agentsolvr/shell/internal/notify"
)

func TestServiceFromSpec(t *testing.T) {
	svc, err := serviceFromSpec("backend", map[string]any{
		"command": []any{"node", "server.js"},
		"env":     map[string]any{"PORT": "3001"},
		"dir":     "/opt/backend",
	})
	if err != nil {
		t.Fatal(err)
	}
	if svc.Name() != "backend" {
		t.Errorf("name = %q", svc.Name())
	}

	if _, err := serviceFromSpec("bad", map[string]any{}); err == nil {
		t.Error("missing command accepted")
	}
	if _, err := serviceFromSpec("bad", map[string]any{"command": []any{1}}); err == nil {
		t.Error("non-string command accepted")
	}
	if _, err := serviceFromSpec("single", map[string]any{"command": "uvicorn"}); err != nil {
		t.Errorf("bare string command rejected: %v", err)
	}
}

func TestNotificationFromRequest(t *testing.T) {
	n := notificationFromRequest(ipc.NotifyRequest{
		Title:    "Build finished",
		Message:  "all targets ok",
		Type:     "success",
		Priority: 4,
		Group:    "builds",
		Duration: 2500,
	})
	if n.Type != notify.TypeSuccess {
		t.Errorf("type = %q", n.Type)
	}
	if n.Priority != notify.PriorityCritical {
		t.Errorf("priority = %d", n.Priority)
	}
	if n.GroupID != "builds" {
		t.Errorf("group = %q", n.GroupID)
	}
	if n.Duration != 2500*time.Millisecond {
		t.Errorf("duration = %v", n.Duration)
	}

	// Out-of-range priority falls back to the default.
	n = notificationFromRequest(ipc.NotifyRequest{Title: "x", Priority: 99})
	if n.Priority != notify.PriorityNormal {
		t.Errorf("priority = %d", n.Priority)
	}
}

func TestNotificationViews(t *testing.T) {
	n := notify.New("", "Deploy", "done")
	n.OnClick = func() {}
	n.Actions = []notify.Action{notify.ButtonAction{ActionID: "view", Text: "View"}}

	views := notificationViews([]*notify.Notification{n})
	if len(views) != 1 {
		t.Fatalf("views = %d", len(views))
	}
	v := views[0]
	if v.Title != "Deploy" || len(v.Actions) != 1 || v.Actions[0].ID != "view" {
		t.Errorf("view = %+v", v)
	}
}
