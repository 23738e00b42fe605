package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentsolvr/shell/internal/ipc"
	"github.com/agentsolvr/shell/internal/notify"
	"github.com/agentsolvr/shell/internal/window"
)

// registerChannels wires the renderer-facing bridge channels on top of
// the built-in service channels.
func (s *Shell) registerChannels() {
	register := func(channel string, h func(ctx context.Context, payload json.RawMessage) (any, error)) {
		if err := s.bridge.RegisterHandler(channel, h); err != nil {
			log.Error("register channel", "channel", channel, "error", err)
		}
	}

	register("notification.show", s.handleNotificationShow)
	register("notification.dismiss", s.handleNotificationDismiss)
	register("notification.click", s.handleNotificationClick)
	register("notification.action", s.handleNotificationAction)
	register("notification.history", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return notificationViews(s.center.History()), nil
	})
	register("notification.active", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return notificationViews(s.center.Active()), nil
	})
	register("notification.stats", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.center.Stats(), nil
	})
	register("notification.dnd", s.handleDoNotDisturb)

	register("window.show", s.windowOp(s.windows.Show))
	register("window.hide", s.windowOp(s.windows.Hide))
	register("window.focus", s.windowOp(s.windows.Focus))
	register("window.close", s.windowOp(s.windows.Close))
	register("window.move", s.handleWindowMove)
	register("window.list", func(ctx context.Context, _ json.RawMessage) (any, error) {
		windows := s.windows.All()
		out := make([]map[string]any, 0, len(windows))
		for _, w := range windows {
			out = append(out, map[string]any{
				"windowId": w.ID(),
				"title":    w.Title(),
				"bounds":   w.Bounds(),
				"visible":  w.Visible(),
			})
		}
		return out, nil
	})

	register("update.check", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.runUpdateCheck("")
	})
	register("update.status", func(ctx context.Context, _ json.RawMessage) (any, error) {
		res := map[string]any{"state": string(s.updater.State())}
		if rel := s.updater.Available(); rel != nil {
			res["available"] = rel.Version
			res["notes"] = rel.Notes
		}
		return res, nil
	})

	register("shell.status", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.statusResult(false), nil
	})
}

// notificationView is the renderer-facing shape of a notification.
// Callback fields never cross the bridge.
type notificationView struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Type      string               `json:"type"`
	Priority  int                  `json:"priority"`
	Timestamp time.Time            `json:"timestamp"`
	Icon      string               `json:"icon,omitempty"`
	Group     string               `json:"group,omitempty"`
	Source    string               `json:"source,omitempty"`
	Progress  *notify.ProgressInfo `json:"progress,omitempty"`
	Actions   []actionView         `json:"actions,omitempty"`
}

type actionView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func notificationViews(ns []*notify.Notification) []notificationView {
	out := make([]notificationView, 0, len(ns))
	for _, n := range ns {
		v := notificationView{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      string(n.Type),
			Priority:  int(n.Priority),
			Timestamp: n.Timestamp,
			Icon:      n.Icon,
			Group:     n.GroupID,
			Source:    n.Source,
			Progress:  n.Progress,
		}
		for _, a := range n.Actions {
			v.Actions = append(v.Actions, actionView{ID: a.ID(), Label: a.Label()})
		}
		out = append(out, v)
	}
	return out
}

func (s *Shell) handleNotificationShow(ctx context.Context, payload json.RawMessage) (any, error) {
	var req ipc.NotifyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if req.Title == "" {
		return nil, fmt.Errorf("notification needs a title")
	}
	id, err := s.center.Show(notificationFromRequest(req))
	if err != nil {
		return nil, err
	}
	return ipc.NotifyResult{ID: id, Queued: true}, nil
}

func (s *Shell) handleNotificationDismiss(ctx context.Context, payload json.RawMessage) (any, error) {
	var req ipc.DismissRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	switch {
	case req.ID != "":
		return ipc.Result{OK: s.center.Dismiss(req.ID)}, nil
	case req.Group != "":
		n := s.center.DismissGroup(req.Group)
		return ipc.Result{OK: true, Count: n}, nil
	default:
		n := s.center.ClearAll()
		return ipc.Result{OK: true, Count: n}, nil
	}
}

func (s *Shell) handleNotificationClick(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return ipc.Result{OK: s.center.Click(req.ID)}, nil
}

func (s *Shell) handleNotificationAction(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		ID       string `json:"id"`
		ActionID string `json:"actionId"`
		Value    string `json:"value,omitempty"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return ipc.Result{OK: s.center.InvokeAction(req.ID, req.ActionID, req.Value)}, nil
}

func (s *Shell) handleDoNotDisturb(ctx context.Context, payload json.RawMessage) (any, error) {
	var req ipc.DoNotDisturbRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	s.center.SetDoNotDisturb(req.Enabled, time.Duration(req.DurationSeconds)*time.Second)
	return ipc.Result{OK: true}, nil
}

func (s *Shell) windowOp(op func(id string) error) func(ctx context.Context, payload json.RawMessage) (any, error) {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			WindowID string `json:"windowId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		if req.WindowID == "" {
			req.WindowID = mainWindowID
		}
		if err := op(req.WindowID); err != nil {
			return nil, err
		}
		return ipc.Result{OK: true}, nil
	}
}

func (s *Shell) handleWindowMove(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		WindowID string        `json:"windowId"`
		Bounds   window.Bounds `json:"bounds"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if req.WindowID == "" {
		req.WindowID = mainWindowID
	}
	if err := s.windows.Move(req.WindowID, req.Bounds); err != nil {
		return nil, err
	}
	return ipc.Result{OK: true}, nil
}
