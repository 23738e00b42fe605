// Package window tracks renderer window state and persists geometry
// across runs.
package window

import (
	"sync"
	"time"
)

// Bounds is a window's position and size on the desktop.
type Bounds struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Options configure a new window.
type Options struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
	Show      bool
}

const (
	DefaultWidth  = 1200
	DefaultHeight = 800
)

// Window is the shell-side record of a renderer window.
type Window struct {
	id string

	mu        sync.Mutex
	title     string
	bounds    Bounds
	resizable bool
	visible   bool
	focused   bool
	createdAt time.Time
	destroyed bool
}

// ID returns the window's identifier.
func (w *Window) ID() string { return w.id }

// Title returns the window title.
func (w *Window) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

// SetTitle changes the window title.
func (w *Window) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
}

// Bounds returns the current geometry.
func (w *Window) Bounds() Bounds {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

// SetBounds moves or resizes the window. Non-positive sizes are
// ignored.
func (w *Window) SetBounds(b Bounds) {
	if b.Width <= 0 || b.Height <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bounds = b
}

// Resizable reports whether the user may resize the window.
func (w *Window) Resizable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resizable
}

// Visible reports whether the window is shown.
func (w *Window) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

// Show makes the window visible.
func (w *Window) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = true
}

// Hide conceals the window without destroying it.
func (w *Window) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
	w.focused = false
}

// Focused reports whether the window has input focus.
func (w *Window) Focused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Destroyed reports whether the window has been torn down.
func (w *Window) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}
