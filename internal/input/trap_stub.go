//go:build !windows

package input

import "log"

// Trap is the capture source used when no platform hook is compiled in.
// Start always fails; the service keeps running so the tray and API can
// still drive the session.
type Trap struct{}

// NewTrap creates a new stub trap
func NewTrap() *Trap {
	return &Trap{}
}

// Start begins capturing input (stub)
func (t *Trap) Start(sink Sink) error {
	return ErrUnsupportedPlatform
}

// Stop stops capturing input (stub)
func (t *Trap) Stop() error {
	return nil
}

// Suppress toggles local delivery (stub)
func (t *Trap) Suppress(enabled bool) {
	log.Printf("Trap: suppress=%v ignored, no capture hook", enabled)
}

// Release synthesizes key-up events (stub)
func (t *Trap) Release(names ...string) error {
	return nil
}

// StaticPointer is a Pointer that never reports a position, making the
// edge portal idle.
type StaticPointer struct{}

// Position implements Pointer.
func (StaticPointer) Position() (int, int, bool) { return 0, 0, false }

// SetPosition implements Pointer.
func (StaticPointer) SetPosition(x, y int) error { return ErrUnsupportedPlatform }

// NewPointer returns the platform cursor.
func NewPointer() Pointer { return StaticPointer{} }

// NewScreen returns the configured dimensions; there is no platform query.
func NewScreen(width, height int) Screen {
	return FixedScreen{Width: width, Height: height}
}
