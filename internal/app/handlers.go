package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/agentsolvr/shell/internal/control"
	"github.com/agentsolvr/shell/internal/ipc"
	"github.com/agentsolvr/shell/internal/notify"
	"github.com/agentsolvr/shell/internal/updater"
)

// controlHandlers exposes the shell over the local control socket.
func (s *Shell) controlHandlers() control.Handlers {
	return control.Handlers{
		Status: func(verbose bool) (*ipc.StatusResult, error) {
			return s.statusResult(verbose), nil
		},
		Notify: func(req ipc.NotifyRequest) (*ipc.NotifyResult, error) {
			id, err := s.center.Show(notificationFromRequest(req))
			if err != nil {
				return nil, err
			}
			return &ipc.NotifyResult{ID: id, Queued: true}, nil
		},
		Dismiss: func(req ipc.DismissRequest) (*ipc.Result, error) {
			switch {
			case req.ID != "":
				ok := s.center.Dismiss(req.ID)
				if !ok {
					return &ipc.Result{OK: false, Message: "not found"}, nil
				}
				return &ipc.Result{OK: true, Count: 1}, nil
			case req.Group != "":
				n := s.center.DismissGroup(req.Group)
				return &ipc.Result{OK: true, Count: n}, nil
			default:
				return nil, fmt.Errorf("dismiss needs an id or a group")
			}
		},
		Clear: func() (*ipc.Result, error) {
			n := s.center.ClearAll()
			return &ipc.Result{OK: true, Count: n}, nil
		},
		DoNotDisturb: func(req ipc.DoNotDisturbRequest) (*ipc.Result, error) {
			s.center.SetDoNotDisturb(req.Enabled, time.Duration(req.DurationSeconds)*time.Second)
			return &ipc.Result{OK: true}, nil
		},
		UpdateCheck: func(req ipc.UpdateCheckRequest) (*ipc.UpdateResult, error) {
			return s.runUpdateCheck(req.Channel)
		},
	}
}

func (s *Shell) runUpdateCheck(channel string) (*ipc.UpdateResult, error) {
	if channel != "" && !updater.ValidChannel(channel) {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rel, err := s.updater.Check(ctx)
	if err != nil {
		return nil, err
	}
	res := &ipc.UpdateResult{
		State:   string(s.updater.State()),
		Current: s.version,
	}
	if rel != nil {
		res.Available = rel.Version
		res.Notes = rel.Notes
	}
	return res, nil
}

// statusResult snapshots the shell for status queries. Process CPU and
// memory are sampled only on verbose requests; gopsutil walks /proc and
// is not free.
func (s *Shell) statusResult(verbose bool) *ipc.StatusResult {
	res := &ipc.StatusResult{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		PID:           os.Getpid(),
		UpdateState:   string(s.updater.State()),
		Windows:       s.windows.Count(),
	}

	if stats, err := json.Marshal(s.center.Stats()); err == nil {
		res.Notifications = stats
	}
	if svcs, err := json.Marshal(s.bridge.Services()); err == nil {
		res.Services = svcs
	}

	if verbose {
		if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
			if pct, err := proc.CPUPercent(); err == nil {
				res.CPUPercent = pct
			}
			if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
				res.MemoryMB = float64(mi.RSS) / 1024 / 1024
			}
		}
	}
	return res
}

func notificationFromRequest(req ipc.NotifyRequest) *notify.Notification {
	n := notify.New(req.ID, req.Title, req.Message)
	if req.Type != "" {
		n.Type = notify.Type(req.Type)
	}
	if req.Priority >= int(notify.PriorityLow) && req.Priority <= int(notify.PriorityUrgent) {
		n.Priority = notify.Priority(req.Priority)
	}
	n.GroupID = req.Group
	if req.Duration > 0 {
		n.Duration = time.Duration(req.Duration) * time.Millisecond
	}
	return n
}
