package controller

import (
	"inputshare/internal/input"
	"inputshare/internal/protocol"
)

// Mover is the producer side of the movement pacer.
type Mover interface {
	Track(x, y int)
	Rebase(x, y int)
	ResetPoint()
}

// Hotkeys observes every key event for chord matching.
type Hotkeys interface {
	Press(name string)
	Release(name string)
}

// Handlers turns capture callbacks into device traffic. It implements
// input.Sink.
type Handlers struct {
	c       *Controller
	hotkeys Hotkeys
	mover   Mover

	mods    input.ModifierState
	keys    input.ActiveKeySet
	buttons input.ButtonState
}

// NewHandlers creates the capture handlers for c. hotkeys may be nil.
func NewHandlers(c *Controller, hotkeys Hotkeys) *Handlers {
	h := &Handlers{c: c, hotkeys: hotkeys}
	c.OnChange(func(bool) {
		h.keys.Reset()
		if h.mover != nil {
			h.mover.ResetPoint()
		}
	})
	return h
}

// SetMover attaches the pacer. It must be called before capture starts.
func (h *Handlers) SetMover(m Mover) {
	h.mover = m
}

// Buttons returns the held pointer button mask.
func (h *Handlers) Buttons() uint8 {
	return h.buttons.Mask()
}

// Modifiers returns the held modifier flags.
func (h *Handlers) Modifiers() uint8 {
	return h.mods.Snapshot()
}

// ActiveKeys returns the held non-modifier keys.
func (h *Handlers) ActiveKeys() []uint16 {
	return h.keys.Keys()
}

func (h *Handlers) pointerShared() bool {
	return h.c.Redirecting() && !h.c.opts.Settings().ShareKeyboardOnly
}

// shortcut returns the messages for a local Alt shortcut, or nil.
func (h *Handlers) shortcut(key input.Key) [][]byte {
	if h.c.Redirecting() || !h.mods.Has(input.ModLeftAlt|input.ModRightAlt) {
		return nil
	}
	if key.Class != input.ClassScancode {
		return nil
	}
	press := func(code uint16) [][]byte {
		return [][]byte{
			protocol.InjectKeycode(code, protocol.ActionDown),
			protocol.InjectKeycode(code, protocol.ActionUp),
		}
	}
	switch key.Code {
	case input.ScancodeUp, input.ScancodeDown:
		return [][]byte{
			protocol.KeyboardReport(0, []uint16{key.Code}),
			protocol.KeyboardEmpty(),
		}
	case input.ScancodeLeftBracket:
		return press(input.AKeyMediaPrevious)
	case input.ScancodeRightBracket:
		return press(input.AKeyMediaNext)
	case input.ScancodeBackslash:
		return press(input.AKeyMediaPlayPause)
	}
	return nil
}

// KeyDown implements input.Sink.
func (h *Handlers) KeyDown(name string) {
	if h.hotkeys != nil {
		h.hotkeys.Press(name)
	}
	key, ok := input.Lookup(name)
	if !ok {
		return
	}
	if msgs := h.shortcut(key); msgs != nil {
		for _, msg := range msgs {
			h.c.sendOrExit(msg)
		}
		return
	}

	switch key.Class {
	case input.ClassModifier:
		h.mods.KeyDown(uint8(key.Code))
		if !h.c.Redirecting() {
			return
		}
		h.c.sendOrExit(protocol.KeyboardReport(h.mods.Snapshot(), h.keys.Keys()))
	case input.ClassDeviceKey:
		if !h.c.Redirecting() {
			return
		}
		switch key.Code {
		case input.AKeySoftSleep:
			h.c.session.SetManualSleep(true)
		case input.AKeyWakeup:
			h.c.session.SetManualSleep(false)
		}
		h.c.sendOrExit(protocol.InjectKeycode(key.Code, protocol.ActionDown))
	case input.ClassScancode:
		if !h.c.Redirecting() {
			return
		}
		keys := h.keys.Press(key.Code)
		h.c.sendOrExit(protocol.KeyboardReport(h.mods.Snapshot(), keys))
	}
}

// KeyUp implements input.Sink.
func (h *Handlers) KeyUp(name string) {
	if h.hotkeys != nil {
		h.hotkeys.Release(name)
	}
	key, ok := input.Lookup(name)
	if !ok {
		return
	}

	switch key.Class {
	case input.ClassModifier:
		h.mods.KeyUp(uint8(key.Code))
		if !h.c.Redirecting() {
			return
		}
		h.c.sendOrExit(protocol.KeyboardReport(h.mods.Snapshot(), h.keys.Keys()))
	case input.ClassDeviceKey:
		if !h.c.Redirecting() {
			return
		}
		h.c.sendOrExit(protocol.InjectKeycode(key.Code, protocol.ActionUp))
	case input.ClassScancode:
		if !h.c.Redirecting() {
			return
		}
		keys := h.keys.Release(key.Code)
		h.c.sendOrExit(protocol.KeyboardReport(h.mods.Snapshot(), keys))
	}
}

// PointerMove implements input.Sink.
func (h *Handlers) PointerMove(x, y int) {
	if h.mover == nil {
		return
	}
	if !h.pointerShared() {
		h.mover.ResetPoint()
		return
	}
	if h.c.opts.Portal != nil && h.c.opts.Portal.ConsumePassing() {
		h.mover.Rebase(x, y)
		return
	}
	h.mover.Track(x, y)
}

// PointerButton implements input.Sink. Side buttons become device back and
// notification keys.
func (h *Handlers) PointerButton(_, _ int, button input.Button, pressed bool) {
	if !h.pointerShared() {
		return
	}
	action := protocol.ActionUp
	if pressed {
		action = protocol.ActionDown
	}
	switch button {
	case input.ButtonX1:
		h.c.sendOrExit(protocol.InjectKeycode(input.AKeyBack, action))
		return
	case input.ButtonX2:
		h.c.sendOrExit(protocol.InjectKeycode(input.AKeyNotification, action))
		return
	}

	bit, ok := input.ButtonBit(button)
	if !ok {
		return
	}
	if pressed {
		h.buttons.Down(bit)
	} else {
		h.buttons.Up(bit)
	}
	h.c.sendOrExit(protocol.MouseClick(h.buttons.Mask()))
}

// PointerScroll implements input.Sink.
func (h *Handlers) PointerScroll(_, _, _, dy int) {
	if !h.pointerShared() {
		return
	}
	h.c.sendOrExit(protocol.MouseScroll(dy, h.buttons.Mask()))
}
