//go:build linux

package tray

import (
	"os/exec"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/agentsolvr/shell/internal/notify"
)

const (
	dbusNotifyInterface = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	callNotify          = "org.freedesktop.Notifications.Notify"
)

var (
	dbusMu   sync.Mutex
	dbusConn *dbus.Conn
	dbusDead bool
)

// displayNotification delivers through the freedesktop Notifications
// D-Bus service, falling back to notify-send when no session bus is
// reachable.
func displayNotification(appName string, n *notify.Notification) bool {
	if sendDBus(appName, n) {
		return true
	}
	return sendNotifySend(n)
}

func sendDBus(appName string, n *notify.Notification) bool {
	conn := sessionBus()
	if conn == nil {
		return false
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyFor(n.Priority)),
	}
	// -1 lets the server pick; 0 means never expire
	expire := int32(-1)
	if n.Duration == 0 {
		expire = 0
	} else if n.Duration > 0 {
		expire = int32(n.Duration.Milliseconds())
	}

	obj := conn.Object(dbusNotifyInterface, dbus.ObjectPath(dbusNotifyPath))
	call := obj.Call(callNotify, 0,
		appName,
		uint32(0),
		n.Icon,
		n.Title,
		n.Message,
		[]string{},
		hints,
		expire)
	if call.Err != nil {
		log.Warn("dbus notify failed", "error", call.Err)
		return false
	}
	return true
}

func sessionBus() *dbus.Conn {
	dbusMu.Lock()
	defer dbusMu.Unlock()
	if dbusConn != nil {
		return dbusConn
	}
	if dbusDead {
		return nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Warn("session bus unavailable", "error", err)
		dbusDead = true
		return nil
	}
	dbusConn = conn
	return conn
}

func urgencyFor(p notify.Priority) byte {
	switch {
	case p <= notify.PriorityLow:
		return 0
	case p >= notify.PriorityCritical:
		return 2
	default:
		return 1
	}
}

func sendNotifySend(n *notify.Notification) bool {
	args := []string{n.Title, n.Message}
	switch {
	case n.Priority <= notify.PriorityLow:
		args = append([]string{"-u", "low"}, args...)
	case n.Priority >= notify.PriorityCritical:
		args = append([]string{"-u", "critical"}, args...)
	}
	if n.Icon != "" {
		args = append([]string{"-i", n.Icon}, args...)
	}

	cmd := exec.Command("notify-send", args...)
	if err := cmd.Run(); err != nil {
		log.Warn("notification failed", "error", err)
		return false
	}
	return true
}
