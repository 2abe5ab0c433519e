// Package hotkey matches key chords like "Ctrl+Alt+S" against the stream of
// key names delivered by the input capture.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"inputshare/internal/input"
)

// Defaults used when the configuration leaves a chord empty.
const (
	DefaultToggle = "Ctrl+Alt+S"
	DefaultExit   = "Ctrl+Alt+Q"
)

// generic maps side-specific modifier names to their generic form so a
// chord written with "Ctrl" is satisfied by either control key.
var generic = map[string]string{
	"LCTRL":  "CTRL",
	"RCTRL":  "CTRL",
	"LALT":   "ALT",
	"RALT":   "ALT",
	"LSHIFT": "SHIFT",
	"RSHIFT": "SHIFT",
	"LMETA":  "META",
	"RMETA":  "META",
}

// synonyms normalizes chord spellings.
var synonyms = map[string]string{
	"CONTROL": "CTRL",
	"OPTION":  "ALT",
	"CMD":     "META",
	"WIN":     "META",
	"SUPER":   "META",
	"ESCAPE":  "ESC",
	"RETURN":  "ENTER",
}

func normalize(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if s, ok := synonyms[name]; ok {
		return s
	}
	return name
}

// Parse splits a chord into normalized key names.
func Parse(chord string) ([]string, error) {
	if strings.TrimSpace(chord) == "" {
		return nil, fmt.Errorf("hotkey: empty chord")
	}
	raw := strings.Split(chord, "+")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = normalize(p)
		if p == "" {
			return nil, fmt.Errorf("hotkey: empty key in %q", chord)
		}
		if _, ok := input.Lookup(p); !ok {
			return nil, fmt.Errorf("hotkey: unknown key %q in %q", p, chord)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Manager tracks held keys and fires registered chords
type Manager struct {
	mu      sync.Mutex
	hotkeys []*registeredHotkey
	held    map[string]bool
}

type registeredHotkey struct {
	parts    []string
	original string
	callback func()
	active   bool
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{held: make(map[string]bool)}
}

// Register adds a chord. The callback runs in its own goroutine once each
// time the chord becomes fully held.
func (m *Manager) Register(chord string, callback func()) error {
	parts, err := Parse(chord)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: chord,
		callback: callback,
	})
	return nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// Press records a key down and fires chords it completes.
func (m *Manager) Press(name string) {
	m.update(name, true)
}

// Release records a key up.
func (m *Manager) Release(name string) {
	m.update(name, false)
}

func (m *Manager) update(name string, down bool) {
	name = normalize(name)
	var fire []*registeredHotkey

	m.mu.Lock()
	if down {
		m.held[name] = true
	} else {
		delete(m.held, name)
	}
	for _, hk := range m.hotkeys {
		match := m.matchLocked(hk.parts)
		if match && !hk.active && down {
			fire = append(fire, hk)
		}
		hk.active = match
	}
	m.mu.Unlock()

	for _, hk := range fire {
		log.Printf("Hotkey: triggered %s", hk.original)
		go hk.callback()
	}
}

func (m *Manager) matchLocked(parts []string) bool {
	for _, part := range parts {
		if !m.heldLocked(part) {
			return false
		}
	}
	return true
}

func (m *Manager) heldLocked(part string) bool {
	if m.held[part] {
		return true
	}
	for name := range m.held {
		if generic[name] == part {
			return true
		}
	}
	return false
}
