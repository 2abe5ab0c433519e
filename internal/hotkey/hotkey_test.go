package hotkey

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	parts, err := Parse("Ctrl + alt+S")
	require.NoError(t, err)
	assert.Equal(t, []string{"CTRL", "ALT", "S"}, parts)

	parts, err = Parse("Cmd+Escape")
	require.NoError(t, err)
	assert.Equal(t, []string{"META", "ESC"}, parts)

	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("Ctrl+Hyper")
	assert.ErrorContains(t, err, "unknown key")

	_, err = Parse("Ctrl++S")
	assert.Error(t, err)
}

func TestChordFiresOncePerHold(t *testing.T) {
	m := NewManager()
	var fired atomic.Int32
	require.NoError(t, m.Register(DefaultToggle, func() { fired.Add(1) }))

	m.Press("LCTRL")
	m.Press("RALT")
	m.Press("S")
	m.Press("S") // autorepeat
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)

	m.Release("S")
	m.Press("S")
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), fired.Load())
}

func TestSideSpecificChord(t *testing.T) {
	m := NewManager()
	var fired atomic.Int32
	require.NoError(t, m.Register("LCtrl+Q", func() { fired.Add(1) }))

	m.Press("RCTRL")
	m.Press("Q")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load(), "right ctrl must not satisfy LCTRL")

	m.Release("Q")
	m.Press("LCTRL")
	m.Press("Q")
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
}

func TestReleaseBreaksChord(t *testing.T) {
	m := NewManager()
	var fired atomic.Int32
	require.NoError(t, m.Register(DefaultExit, func() { fired.Add(1) }))

	m.Press("LCTRL")
	m.Press("LALT")
	m.Release("LCTRL")
	m.Press("Q")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	m.Clear()
	m.Press("LCTRL")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
