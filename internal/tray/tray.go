// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

const (
	titleIdle    = "InputShare"
	titleSharing = "InputShare (sharing)"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Checkbox bool
	Checked  bool
	Callback func(checked bool)
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu. It doubles as the
// redirection overlay: Show and Hide flip the title and the item passed
// to SetSharingItem.
type Tray struct {
	tooltip string

	mu      sync.Mutex
	items   []*MenuItem
	sharing int
	ready   bool
	title   string

	quitCh   chan struct{}
	quitOnce sync.Once
}

// New creates a new system tray
func New(tooltip string) *Tray {
	return &Tray{
		tooltip: tooltip,
		sharing: -1,
		title:   titleIdle,
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a plain menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Callback: func(bool) {
		if callback != nil {
			callback()
		}
	}})
}

// AddCheckbox adds a checkable item. The callback receives the new state.
func (t *Tray) AddCheckbox(title string, checked bool, callback func(checked bool)) int {
	return t.add(&MenuItem{Title: title, Checkbox: true, Checked: checked, Callback: callback})
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetSharingItem marks the checkbox that mirrors the redirection state.
func (t *Tray) SetSharingItem(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharing = id
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setCheckedLocked(id, checked)
}

func (t *Tray) setCheckedLocked(id int, checked bool) {
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	mi := t.items[id]
	mi.Checked = checked
	if mi.item == nil {
		return
	}
	if checked {
		mi.item.Check()
	} else {
		mi.item.Uncheck()
	}
}

// Checked reports the stored state of a checkbox item.
func (t *Tray) Checked(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return false
	}
	return t.items[id].Checked
}

// Title returns the current tray title.
func (t *Tray) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

// Show marks the tray as sharing.
func (t *Tray) Show() {
	t.setSharing(true)
}

// Hide marks the tray as idle.
func (t *Tray) Hide() {
	t.setSharing(false)
}

func (t *Tray) setSharing(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = titleIdle
	if on {
		t.title = titleSharing
	}
	t.setCheckedLocked(t.sharing, on)
	if t.ready {
		systray.SetTitle(t.title)
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// Done is closed once the tray loop has exited.
func (t *Tray) Done() <-chan struct{} {
	return t.quitCh
}

func (t *Tray) onExit() {
	t.quitOnce.Do(func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		if menuItem.Checkbox {
			menuItem.item = systray.AddMenuItemCheckbox(menuItem.Title, "", menuItem.Checked)
		} else {
			menuItem.item = systray.AddMenuItem(menuItem.Title, "")
		}
		go t.watch(menuItem)
	}
	t.ready = true
}

// watch handles clicks in its own goroutine until the tray exits.
func (t *Tray) watch(mi *MenuItem) {
	for {
		select {
		case <-mi.item.ClickedCh:
			checked := false
			if mi.Checkbox {
				t.mu.Lock()
				checked = !mi.Checked
				if mi.ID != t.sharing {
					// The sharing item follows the controller instead.
					t.setCheckedLocked(mi.ID, checked)
				}
				t.mu.Unlock()
			}
			if mi.Callback != nil {
				mi.Callback(checked)
			}
		case <-t.quitCh:
			return
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	icon := make([]byte, 1118)
	// ICO header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon directory: 16x16, 32bpp, 1096 bytes at offset 22
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00,
		0x16, 0x00, 0x00, 0x00,
	})
	// DIB header; height is doubled for the mask
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00,
		0x10, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// Pixels and mask stay zero: fully transparent
	return icon
}
