package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveKeySetEvictsOldest(t *testing.T) {
	var s ActiveKeySet
	for code := uint16(1); code <= 7; code++ {
		s.Press(code)
	}

	keys := s.Keys()
	require.Len(t, keys, MaxActiveKeys)
	assert.Equal(t, []uint16{2, 3, 4, 5, 6, 7}, keys)
}

func TestActiveKeySetPressIsIdempotent(t *testing.T) {
	var s ActiveKeySet
	s.Press(4)
	s.Press(5)
	got := s.Press(4)
	assert.Equal(t, []uint16{4, 5}, got)
}

func TestActiveKeySetRelease(t *testing.T) {
	var s ActiveKeySet
	s.Press(4)
	s.Press(5)
	s.Press(6)

	assert.Equal(t, []uint16{4, 6}, s.Release(5))
	assert.Equal(t, []uint16{4, 6}, s.Release(99), "releasing an absent key is a no-op")

	s.Reset()
	assert.Empty(t, s.Keys())
}

func TestActiveKeySetReturnsCopies(t *testing.T) {
	var s ActiveKeySet
	keys := s.Press(4)
	keys[0] = 42
	assert.Equal(t, []uint16{4}, s.Keys())
}

func TestModifierState(t *testing.T) {
	var m ModifierState
	m.KeyDown(ModLeftCtrl)
	m.KeyDown(ModRightAlt)

	if m.Snapshot() != ModLeftCtrl|ModRightAlt {
		t.Errorf("Expected flags 0x%X, got 0x%X", ModLeftCtrl|ModRightAlt, m.Snapshot())
	}
	assert.True(t, m.Has(ModLeftAlt|ModRightAlt))

	m.KeyUp(ModRightAlt)
	assert.False(t, m.Has(ModLeftAlt|ModRightAlt))
	assert.Equal(t, ModLeftCtrl, m.Snapshot())
}

func TestButtonState(t *testing.T) {
	var b ButtonState
	b.Down(MouseButtonLeft)
	b.Down(MouseButtonMiddle)
	assert.Equal(t, MouseButtonLeft|MouseButtonMiddle, b.Mask())

	b.Up(MouseButtonLeft)
	assert.Equal(t, MouseButtonMiddle, b.Mask())
}

func TestButtonBitIgnoresSideButtons(t *testing.T) {
	for _, btn := range []Button{ButtonX1, ButtonX2} {
		_, ok := ButtonBit(btn)
		assert.False(t, ok, "side button %d must not map to a bit", btn)
	}
	bit, ok := ButtonBit(ButtonRight)
	require.True(t, ok)
	assert.Equal(t, MouseButtonRight, bit)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name  string
		class KeyClass
		code  uint16
	}{
		{"a", ClassScancode, 0x04},
		{"Z", ClassScancode, 0x1D},
		{"1", ClassScancode, 0x1E},
		{"0", ClassScancode, 0x27},
		{"F12", ClassScancode, 0x45},
		{"up", ClassScancode, ScancodeUp},
		{"Ctrl", ClassModifier, uint16(ModLeftCtrl)},
		{"RALT", ClassModifier, uint16(ModRightAlt)},
		{"media_next", ClassDeviceKey, AKeyMediaNext},
		{"sleep", ClassDeviceKey, AKeySoftSleep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.class, k.Class)
			assert.Equal(t, tt.code, k.Code)
		})
	}

	_, ok := Lookup("NOT_A_KEY")
	assert.False(t, ok)
}
