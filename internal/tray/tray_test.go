package tray

import (
	"strings"
	"sync"
	"testing"
)

type fakeUI struct {
	mu       sync.Mutex
	icons    int
	tooltips []string
	added    []string
	labels   map[string]string
	disabled map[string]bool
	hidden   []string
	seps     int
	quits    int
}

func newFakeUI() *fakeUI {
	return &fakeUI{labels: make(map[string]string), disabled: make(map[string]bool)}
}

func (f *fakeUI) setIcon([]byte) {
	f.mu.Lock()
	f.icons++
	f.mu.Unlock()
}
func (f *fakeUI) setTooltip(t string) {
	f.mu.Lock()
	f.tooltips = append(f.tooltips, t)
	f.mu.Unlock()
}
func (f *fakeUI) addItem(id, label, _ string, disabled bool) {
	f.mu.Lock()
	f.added = append(f.added, id)
	f.labels[id] = label
	f.disabled[id] = disabled
	f.mu.Unlock()
}
func (f *fakeUI) addSeparator() {
	f.mu.Lock()
	f.seps++
	f.mu.Unlock()
}
func (f *fakeUI) setItemLabel(id, label string) {
	f.mu.Lock()
	f.labels[id] = label
	f.mu.Unlock()
}
func (f *fakeUI) setItemDisabled(id string, disabled bool) {
	f.mu.Lock()
	f.disabled[id] = disabled
	f.mu.Unlock()
}
func (f *fakeUI) hideItem(id string) {
	f.mu.Lock()
	f.hidden = append(f.hidden, id)
	f.mu.Unlock()
}
func (f *fakeUI) quit() {
	f.mu.Lock()
	f.quits++
	f.mu.Unlock()
}

func newTestManager() (*Manager, *fakeUI) {
	m := NewManager("AgentSOLVR")
	u := newFakeUI()
	m.attach(u)
	return m, u
}

func TestSetStatusUpdatesIconAndHandlers(t *testing.T) {
	m, u := newTestManager()

	var got Status
	m.RegisterStatusHandler(func(s Status) { got = s })

	m.SetStatus("working")
	if m.Status() != StatusWorking {
		t.Errorf("status = %s", m.Status())
	}
	if got != StatusWorking {
		t.Errorf("handler got %s", got)
	}
	u.mu.Lock()
	icons := u.icons
	last := u.tooltips[len(u.tooltips)-1]
	u.mu.Unlock()
	if icons < 2 {
		t.Errorf("icon updates = %d, want at least 2", icons)
	}
	if !strings.Contains(last, "working") {
		t.Errorf("tooltip = %q", last)
	}
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	m, _ := newTestManager()
	m.SetStatus("bogus")
	if m.Status() != StatusIdle {
		t.Errorf("unknown status changed state to %s", m.Status())
	}
}

func TestSetStatusNoopWhenUnchanged(t *testing.T) {
	m, _ := newTestManager()
	calls := 0
	m.RegisterStatusHandler(func(Status) { calls++ })
	m.SetStatus("idle")
	if calls != 0 {
		t.Errorf("handler called %d times for unchanged status", calls)
	}
}

func TestMenuItemLifecycle(t *testing.T) {
	m, u := newTestManager()

	clicked := false
	item := &MenuItem{ID: "restart", Label: "Restart", OnClick: func() { clicked = true }}
	if err := m.AddMenuItem(item); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.AddMenuItem(&MenuItem{ID: "restart", Label: "dup"}); err == nil {
		t.Error("duplicate id accepted")
	}

	m.handleClick("restart")
	if !clicked {
		t.Error("click handler not invoked")
	}

	if err := m.UpdateMenuItem("restart", "Restarting...", true); err != nil {
		t.Fatalf("update: %v", err)
	}
	u.mu.Lock()
	label, disabled := u.labels["restart"], u.disabled["restart"]
	u.mu.Unlock()
	if label != "Restarting..." || !disabled {
		t.Errorf("label=%q disabled=%v", label, disabled)
	}

	if err := m.RemoveMenuItem("restart"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := m.RemoveMenuItem("restart"); err == nil {
		t.Error("removing a missing item succeeded")
	}
	if len(m.MenuItems()) != 0 {
		t.Errorf("menu items = %v", m.MenuItems())
	}
}

func TestRecentActivityKeepsLatestFive(t *testing.T) {
	m, _ := newTestManager()
	for _, s := range []string{"one", "two", "three", "four", "five", "six"} {
		m.AddRecentActivity(s)
	}
	got := m.RecentActivity()
	if len(got) != 5 {
		t.Fatalf("kept %d entries, want 5", len(got))
	}
	if got[0] != "six" {
		t.Errorf("newest = %q, want six", got[0])
	}
	for _, s := range got {
		if s == "one" {
			t.Error("oldest entry not evicted")
		}
	}
}

func TestRecentActivityTruncatesLongLines(t *testing.T) {
	m, _ := newTestManager()
	long := strings.Repeat("x", 80)
	m.AddRecentActivity(long)
	got := m.RecentActivity()[0]
	if len(got) != activityLabelLimit {
		t.Errorf("length = %d, want %d", len(got), activityLabelLimit)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated entry %q missing ellipsis", got)
	}
}

func TestBuildDefaultMenu(t *testing.T) {
	m, _ := newTestManager()

	var quitCalled bool
	m.BuildDefaultMenu(MenuActions{Quit: func() { quitCalled = true }})

	ids := make(map[string]bool)
	for _, it := range m.MenuItems() {
		ids[it.ID] = true
	}
	for _, want := range []string{"show", "status", "settings", "check_updates", "quit"} {
		if !ids[want] {
			t.Errorf("default menu missing %q", want)
		}
	}

	m.handleClick("quit")
	if !quitCalled {
		t.Error("quit handler not invoked")
	}

	m.SetStatus("error")
	found := false
	for _, it := range m.MenuItems() {
		if it.ID == "status" && it.Label == "Status: error" {
			found = true
		}
	}
	if !found {
		t.Error("status menu item did not follow status change")
	}
}

func TestDestroyQuitsOnce(t *testing.T) {
	m, u := newTestManager()
	m.Destroy()
	m.Destroy()
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.quits != 1 {
		t.Errorf("quit called %d times, want 1", u.quits)
	}
}

func TestIconsDistinctPerStatus(t *testing.T) {
	seen := make(map[string]Status)
	for _, s := range []Status{StatusIdle, StatusActive, StatusWorking, StatusError, StatusOffline} {
		b := iconFor(s)
		if len(b) == 0 {
			t.Fatalf("no icon for %s", s)
		}
		key := string(b)
		if prev, dup := seen[key]; dup {
			t.Errorf("statuses %s and %s share an icon", prev, s)
		}
		seen[key] = s
	}
}
