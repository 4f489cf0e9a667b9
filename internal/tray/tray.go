// Package tray provides the system tray menu for photomesh.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Action identifies a menu entry.
type Action int

const (
	ActionCapture Action = iota
	ActionSave
	ActionReset
	ActionClear
	ActionReconstruct
	ActionOpenViewer
	ActionQuit
)

type menuEntry struct {
	action  Action
	title   string
	tooltip string
}

// menu lists the entries in display order. A zero title is a separator.
var menu = []menuEntry{
	{ActionCapture, "Capture", "Freeze the current camera frame"},
	{ActionSave, "Save capture", "Save the captured frame to the capture folder"},
	{}, // separator
	{ActionReset, "Reset view", "Fit the camera to the loaded mesh"},
	{ActionClear, "Clear scene", "Remove the loaded mesh"},
	{}, // separator
	{ActionReconstruct, "Reconstruct", "Build a mesh from the captured frame"},
	{ActionOpenViewer, "Open viewer", "Open the viewer in the browser"},
	{}, // separator
	{ActionQuit, "Quit", "Quit photomesh"},
}

// Tray represents the system tray application.
type Tray struct {
	mu       sync.RWMutex
	handlers map[Action]func()
	status   *systray.MenuItem
	items    map[Action]*systray.MenuItem
	noCamera bool
}

// New creates a new Tray with no callbacks.
func New() *Tray {
	return &Tray{
		handlers: make(map[Action]func()),
		items:    make(map[Action]*systray.MenuItem),
	}
}

func (t *Tray) on(a Action, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[a] = fn
}

// OnCapture sets the callback for the Capture item.
func (t *Tray) OnCapture(fn func()) { t.on(ActionCapture, fn) }

// OnSave sets the callback for the Save capture item.
func (t *Tray) OnSave(fn func()) { t.on(ActionSave, fn) }

// OnReset sets the callback for the Reset view item.
func (t *Tray) OnReset(fn func()) { t.on(ActionReset, fn) }

// OnClear sets the callback for the Clear scene item.
func (t *Tray) OnClear(fn func()) { t.on(ActionClear, fn) }

// OnReconstruct sets the callback for the Reconstruct item.
func (t *Tray) OnReconstruct(fn func()) { t.on(ActionReconstruct, fn) }

// OnOpenViewer sets the callback for the Open viewer item.
func (t *Tray) OnOpenViewer(fn func()) { t.on(ActionOpenViewer, fn) }

// OnQuit sets the callback for the Quit item. The tray exits after it
// returns.
func (t *Tray) OnQuit(fn func()) { t.on(ActionQuit, fn) }

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle("photomesh")
	systray.SetTooltip("photomesh: camera capture and mesh viewer")

	t.mu.Lock()
	t.status = systray.AddMenuItem("Ready", "Last action")
	t.status.Disable()
	systray.AddSeparator()

	for _, e := range menu {
		if e.title == "" {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(e.title, e.tooltip)
		t.items[e.action] = item
		go t.listen(e.action, item)
	}
	if t.noCamera {
		t.items[ActionCapture].Disable()
	}
	t.mu.Unlock()
}

// listen forwards clicks on one item until the tray quits.
func (t *Tray) listen(a Action, item *systray.MenuItem) {
	for range item.ClickedCh {
		t.handle(a)
		if a == ActionQuit {
			return
		}
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handle runs the callback for a. Callbacks run outside the lock.
func (t *Tray) handle(a Action) {
	t.mu.RLock()
	callback := t.handlers[a]
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	if a == ActionQuit {
		systray.Quit()
	}
}

// SetStatus updates the status line at the top of the menu.
func (t *Tray) SetStatus(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status != nil {
		t.status.SetTitle(text)
	}
}

// SetCaptureEnabled enables or disables the Capture entry. It may be
// called before Run.
func (t *Tray) SetCaptureEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.noCamera = !enabled

	if item := t.items[ActionCapture]; item != nil {
		if enabled {
			item.Enable()
		} else {
			item.Disable()
		}
	}
}
