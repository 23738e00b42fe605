package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// systrayUI backs the Manager with getlantern/systray. The toolkit is
// process-global, so at most one Manager should call Run.
type systrayUI struct {
	m *Manager

	mu    sync.Mutex
	items map[string]*systray.MenuItem
}

func runSystray(m *Manager, onReady func()) {
	u := &systrayUI{m: m, items: make(map[string]*systray.MenuItem)}
	systray.Run(func() {
		systray.SetTitle(m.appName)
		m.attach(u)
		if onReady != nil {
			onReady()
		}
	}, func() {
		log.Info("tray exited")
	})
}

func (u *systrayUI) setIcon(icon []byte) {
	if icon != nil {
		systray.SetIcon(icon)
	}
}

func (u *systrayUI) setTooltip(tooltip string) {
	systray.SetTooltip(tooltip)
}

func (u *systrayUI) addItem(id, label, tooltip string, disabled bool) {
	item := systray.AddMenuItem(label, tooltip)
	if disabled {
		item.Disable()
	}
	u.mu.Lock()
	u.items[id] = item
	u.mu.Unlock()

	go func() {
		for range item.ClickedCh {
			u.m.handleClick(id)
		}
	}()
}

func (u *systrayUI) addSeparator() {
	systray.AddSeparator()
}

func (u *systrayUI) setItemLabel(id, label string) {
	if item := u.get(id); item != nil {
		item.SetTitle(label)
	}
}

func (u *systrayUI) setItemDisabled(id string, disabled bool) {
	item := u.get(id)
	if item == nil {
		return
	}
	if disabled {
		item.Disable()
	} else {
		item.Enable()
	}
}

func (u *systrayUI) hideItem(id string) {
	if item := u.get(id); item != nil {
		item.Hide()
	}
	u.mu.Lock()
	delete(u.items, id)
	u.mu.Unlock()
}

func (u *systrayUI) quit() {
	systray.Quit()
}

func (u *systrayUI) get(id string) *systray.MenuItem {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.items[id]
}
