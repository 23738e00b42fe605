package tray

// MenuActions carries the callbacks wired into the default menu.
type MenuActions struct {
	ShowWindow   func()
	OpenSettings func()
	CheckUpdates func()
	Quit         func()
}

// BuildDefaultMenu installs the standard menu layout.
func (m *Manager) BuildDefaultMenu(a MenuActions) {
	m.AddMenuItem(&MenuItem{ID: "show", Label: "Show Window", Tooltip: "Show the main window", OnClick: a.ShowWindow})
	m.AddMenuItem(nil)
	m.AddMenuItem(&MenuItem{ID: "status", Label: "Status: idle", Disabled: true})
	m.AddMenuItem(nil)
	m.AddMenuItem(&MenuItem{ID: "settings", Label: "Settings", Tooltip: "Open settings", OnClick: a.OpenSettings})
	m.AddMenuItem(&MenuItem{ID: "check_updates", Label: "Check for Updates", OnClick: a.CheckUpdates})
	m.AddMenuItem(nil)
	m.AddMenuItem(&MenuItem{ID: "quit", Label: "Quit", Tooltip: "Exit the application", OnClick: a.Quit})

	m.RegisterStatusHandler(func(s Status) {
		m.UpdateMenuItem("status", "Status: "+string(s), true)
	})
}
