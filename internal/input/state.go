package input

import "sync"

// MaxActiveKeys is the number of non-modifier keys a HID boot keyboard
// report can carry.
const MaxActiveKeys = 6

// HID modifier bits.
const (
	ModLeftCtrl   uint8 = 0x01
	ModLeftShift  uint8 = 0x02
	ModLeftAlt    uint8 = 0x04
	ModLeftMeta   uint8 = 0x08
	ModRightCtrl  uint8 = 0x10
	ModRightShift uint8 = 0x20
	ModRightAlt   uint8 = 0x40
	ModRightMeta  uint8 = 0x80
)

// HID mouse button bits.
const (
	MouseButtonLeft   uint8 = 0x01
	MouseButtonRight  uint8 = 0x02
	MouseButtonMiddle uint8 = 0x04
)

// ModifierState is the set of held modifier flags. It is updated on every
// key event whether or not input is redirected since chord matching needs it.
type ModifierState struct {
	mu    sync.Mutex
	flags uint8
}

// KeyDown sets flag.
func (m *ModifierState) KeyDown(flag uint8) {
	m.mu.Lock()
	m.flags |= flag
	m.mu.Unlock()
}

// KeyUp clears flag.
func (m *ModifierState) KeyUp(flag uint8) {
	m.mu.Lock()
	m.flags &^= flag
	m.mu.Unlock()
}

// Has reports whether any of the given flags is held.
func (m *ModifierState) Has(flags uint8) bool {
	return m.Snapshot()&flags != 0
}

// Snapshot returns the current flags.
func (m *ModifierState) Snapshot() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

// ActiveKeySet is the insertion-ordered list of held non-modifier keys.
// It never exceeds MaxActiveKeys; the oldest key is evicted on overflow.
type ActiveKeySet struct {
	mu   sync.Mutex
	keys []uint16
}

// Press adds code if absent and returns the resulting key list.
func (s *ActiveKeySet) Press(code uint16) []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(code) < 0 {
		if len(s.keys) >= MaxActiveKeys {
			s.keys = append(s.keys[:0], s.keys[1:]...)
		}
		s.keys = append(s.keys, code)
	}
	return s.copyLocked()
}

// Release removes code if present and returns the resulting key list.
func (s *ActiveKeySet) Release(code uint16) []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(code); i >= 0 {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
	return s.copyLocked()
}

// Keys returns a copy of the held keys in insertion order.
func (s *ActiveKeySet) Keys() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Reset drops every held key.
func (s *ActiveKeySet) Reset() {
	s.mu.Lock()
	s.keys = s.keys[:0]
	s.mu.Unlock()
}

func (s *ActiveKeySet) indexOf(code uint16) int {
	for i, k := range s.keys {
		if k == code {
			return i
		}
	}
	return -1
}

func (s *ActiveKeySet) copyLocked() []uint16 {
	out := make([]uint16, len(s.keys))
	copy(out, s.keys)
	return out
}

// ButtonState is a bitmask over the left, right and middle pointer buttons.
// Side buttons never touch it.
type ButtonState struct {
	mu   sync.Mutex
	mask uint8
}

// Down sets bit.
func (b *ButtonState) Down(bit uint8) {
	b.mu.Lock()
	b.mask |= bit
	b.mu.Unlock()
}

// Up clears bit.
func (b *ButtonState) Up(bit uint8) {
	b.mu.Lock()
	b.mask &^= bit
	b.mu.Unlock()
}

// Mask returns the current bitmask.
func (b *ButtonState) Mask() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mask
}

// ButtonBit maps a primary pointer button to its HID bit; side buttons
// return false.
func ButtonBit(button Button) (uint8, bool) {
	switch button {
	case ButtonLeft:
		return MouseButtonLeft, true
	case ButtonRight:
		return MouseButtonRight, true
	case ButtonMiddle:
		return MouseButtonMiddle, true
	default:
		return 0, false
	}
}
