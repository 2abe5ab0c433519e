// Package input provides the host-side input model: resolved key codes,
// pointer buttons, the bounded key/button state trackers and the narrow
// interfaces to the platform capture and pointer primitives.
package input

import "errors"

// ErrUnsupportedPlatform is returned by the capture stubs when no hook
// implementation exists for the running OS.
var ErrUnsupportedPlatform = errors.New("input capture not supported on this platform")

// KeyClass tags the payload carried by a Key.
type KeyClass uint8

const (
	// ClassScancode is a HID keyboard usage id (same numbering as SDL scancodes).
	ClassScancode KeyClass = iota + 1
	// ClassModifier is a HID modifier bit.
	ClassModifier
	// ClassDeviceKey is an Android key code injected directly on the device.
	ClassDeviceKey
)

func (c KeyClass) String() string {
	switch c {
	case ClassScancode:
		return "scancode"
	case ClassModifier:
		return "modifier"
	case ClassDeviceKey:
		return "device"
	default:
		return "unknown"
	}
}

// Key is a host key resolved once at mapping time.
type Key struct {
	Class KeyClass
	Code  uint16
}

// Button identifies a pointer button as reported by the capture source.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonRight
	ButtonMiddle
	ButtonX1 // back
	ButtonX2 // forward
)

// Sink receives host input from a Capture. Coordinates are absolute.
type Sink interface {
	KeyDown(name string)
	KeyUp(name string)
	PointerMove(x, y int)
	PointerButton(x, y int, button Button, pressed bool)
	PointerScroll(x, y, dx, dy int)
}

// Capture defines the platform hook delivering host input.
type Capture interface {
	Start(sink Sink) error
	Stop() error
	// Suppress switches local delivery off (true) while input is redirected.
	Suppress(enabled bool)
	// Release synthesizes local key-up events for the given key names.
	Release(names ...string) error
}

// Pointer reads and moves the host cursor.
type Pointer interface {
	// Position returns false when the platform query transiently fails.
	Position() (x, y int, ok bool)
	SetPosition(x, y int) error
}

// Screen reports the host screen dimensions in pixels.
type Screen interface {
	Size() (width, height int)
}

// FixedScreen is a Screen with static dimensions.
type FixedScreen struct {
	Width, Height int
}

// Size implements Screen.
func (s FixedScreen) Size() (int, int) {
	return s.Width, s.Height
}
