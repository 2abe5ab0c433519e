package controller

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputshare/internal/input"
	"inputshare/internal/pacer"
	"inputshare/internal/protocol"
)

type fakeDevice struct {
	mu     sync.Mutex
	sent   [][]byte
	failAt int // 1-based send index that fails, 0 never
	err    error
}

func (d *fakeDevice) Send(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAt > 0 && len(d.sent)+1 >= d.failAt {
		return d.err
	}
	d.sent = append(d.sent, append([]byte(nil), data...))
	return nil
}

func (d *fakeDevice) messages() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.sent...)
}

func (d *fakeDevice) count(msg []byte) int {
	n := 0
	for _, m := range d.messages() {
		if bytes.Equal(m, msg) {
			n++
		}
	}
	return n
}

type fakeCapture struct {
	mu       sync.Mutex
	suppress []bool
	released []string
}

func (f *fakeCapture) Start(input.Sink) error { return nil }
func (f *fakeCapture) Stop() error            { return nil }

func (f *fakeCapture) Suppress(enabled bool) {
	f.mu.Lock()
	f.suppress = append(f.suppress, enabled)
	f.mu.Unlock()
}

func (f *fakeCapture) Release(names ...string) error {
	f.mu.Lock()
	f.released = append(f.released, names...)
	f.mu.Unlock()
	return nil
}

type fakePortal struct {
	mu       sync.Mutex
	wrapping bool
	passing  bool
}

func (p *fakePortal) StartWrapping() { p.mu.Lock(); p.wrapping = true; p.mu.Unlock() }
func (p *fakePortal) StopWrapping()  { p.mu.Lock(); p.wrapping = false; p.mu.Unlock() }
func (p *fakePortal) ConsumePassing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.passing
	p.passing = false
	return v
}

func (p *fakePortal) Wrapping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wrapping
}

type fakeOverlay struct {
	mu    sync.Mutex
	shown bool
}

func (o *fakeOverlay) Show() { o.mu.Lock(); o.shown = true; o.mu.Unlock() }
func (o *fakeOverlay) Hide() { o.mu.Lock(); o.shown = false; o.mu.Unlock() }
func (o *fakeOverlay) Shown() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shown
}

type fakeClipboard struct {
	text string
	ok   bool
}

func (f fakeClipboard) Read() (string, bool) { return f.text, f.ok }
func (f fakeClipboard) Last() (string, bool) { return f.text, f.ok }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	c       *Controller
	device  *fakeDevice
	capture *fakeCapture
	portal  *fakePortal
	overlay *fakeOverlay
	clock   *clock
}

func newFixture(settings Settings) *fixture {
	f := &fixture{
		device:  &fakeDevice{},
		capture: &fakeCapture{},
		portal:  &fakePortal{},
		overlay: &fakeOverlay{},
		clock:   &clock{now: time.Unix(1000, 0)},
	}
	f.c = New(Options{
		Device:   f.device,
		Capture:  f.capture,
		Portal:   f.portal,
		Overlay:  f.overlay,
		Settings: func() Settings { return settings },
		Now:      f.clock.Now,
	})
	return f
}

func TestDebounce(t *testing.T) {
	f := newFixture(Settings{})

	assert.True(t, f.c.RequestToggle())
	f.clock.Advance(100 * time.Millisecond)
	assert.False(t, f.c.RequestToggle(), "second request inside the window is dropped")
	assert.True(t, f.c.Redirecting(), "exactly one flip")

	f.clock.Advance(200 * time.Millisecond)
	assert.True(t, f.c.RequestToggle())
	assert.False(t, f.c.Redirecting(), "third request after the window flips again")
}

func TestDebounceMeasuredFromAcceptedToggle(t *testing.T) {
	f := newFixture(Settings{})
	require.True(t, f.c.RequestForce(true))
	f.clock.Advance(200 * time.Millisecond)
	require.False(t, f.c.RequestForce(false))
	f.clock.Advance(60 * time.Millisecond)
	assert.True(t, f.c.RequestForce(false), "rejected request does not extend the window")
}

func TestHotkeyToggleReleasesChordModifiers(t *testing.T) {
	f := newFixture(Settings{})
	f.c.RequestToggle()
	assert.Equal(t, []string{"CTRL", "ALT"}, f.capture.released)

	f.clock.Advance(time.Second)
	f.c.RequestForce(false)
	assert.Len(t, f.capture.released, 2, "forced toggles release nothing")
}

func TestToggleStates(t *testing.T) {
	f := newFixture(Settings{})
	require.NoError(t, f.c.Toggle("on"))
	assert.True(t, f.c.Redirecting())
	assert.ErrorIs(t, f.c.Toggle("off"), ErrDebounced)
	assert.Error(t, f.c.Toggle("sideways"))

	f.clock.Advance(time.Second)
	require.NoError(t, f.c.Toggle(""))
	assert.False(t, f.c.Redirecting())
}

func TestRequestExitFirstCauseWins(t *testing.T) {
	f := newFixture(Settings{})
	first := errors.New("first")
	f.c.RequestExit(first)
	f.c.RequestExit(errors.New("second"))
	f.c.RequestExit(nil)

	assert.True(t, f.c.Session().Exiting())
	assert.Equal(t, first, f.c.Session().Err())
}

func startRun(t *testing.T, f *fixture) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.c.Run(ctx) }()
	require.Eventually(t, func() bool {
		return f.device.count(protocol.KeyboardEmpty()) >= 1
	}, time.Second, time.Millisecond, "initial state applied")
	return cancel, errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunInitAndTransitions(t *testing.T) {
	f := newFixture(Settings{})
	var changes []bool
	var mu sync.Mutex
	f.c.OnChange(func(on bool) { mu.Lock(); changes = append(changes, on); mu.Unlock() })

	cancel, errc := startRun(t, f)
	defer cancel()

	msgs := f.device.messages()
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, protocol.GetClipboard(), msgs[0])
	assert.Equal(t, protocol.KeyboardCreate(), msgs[1])
	assert.Equal(t, protocol.MouseCreate(), msgs[2])

	require.True(t, f.c.RequestForce(true))
	require.Eventually(t, func() bool {
		return f.overlay.Shown() && f.portal.Wrapping()
	}, time.Second, time.Millisecond)

	f.clock.Advance(time.Second)
	require.True(t, f.c.RequestForce(false))
	require.Eventually(t, func() bool {
		return f.device.count(protocol.KeyboardEmpty()) == 2 && !f.overlay.Shown() && !f.portal.Wrapping()
	}, time.Second, time.Millisecond)

	f.c.RequestExit(nil)
	assert.NoError(t, waitRun(t, errc))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, false}, changes)
	assert.Equal(t, []bool{false, true, false}, f.capture.suppress)
}

func TestKeyboardOnlySkipsOverlayAndWrap(t *testing.T) {
	f := newFixture(Settings{ShareKeyboardOnly: true})
	cancel, errc := startRun(t, f)
	defer cancel()

	require.True(t, f.c.RequestForce(true))
	require.Eventually(t, func() bool {
		f.capture.mu.Lock()
		defer f.capture.mu.Unlock()
		return len(f.capture.suppress) == 2
	}, time.Second, time.Millisecond)
	assert.False(t, f.overlay.Shown())
	assert.False(t, f.portal.Wrapping())

	cancel()
	assert.NoError(t, waitRun(t, errc))
}

func TestExitWhileRedirectingCleansUp(t *testing.T) {
	f := newFixture(Settings{})
	cancel, errc := startRun(t, f)
	defer cancel()

	require.True(t, f.c.RequestForce(true))
	require.Eventually(t, func() bool {
		return f.overlay.Shown() && f.portal.Wrapping()
	}, time.Second, time.Millisecond)

	// The exit's own toggle falls inside the debounce window.
	f.c.RequestExit(nil)
	assert.NoError(t, waitRun(t, errc))
	assert.False(t, f.c.Redirecting())
	assert.False(t, f.overlay.Shown())
	assert.Equal(t, 2, f.device.count(protocol.KeyboardEmpty()))
}

func TestPacerStartsAfterSessionInit(t *testing.T) {
	f := newFixture(Settings{})
	mover := pacer.New(f.c, pacer.Options{})
	defer mover.Stop()

	var readyAt int
	f.c.OnReady(func() {
		readyAt = len(f.device.messages())
		mover.Start()
	})
	cancel, errc := startRun(t, f)
	defer cancel()

	idle := protocol.MouseMove(0, 0, 0)
	require.Eventually(t, func() bool {
		return f.device.count(idle) > 0
	}, time.Second, time.Millisecond)

	msgs := f.device.messages()
	created, firstMove := -1, -1
	for i, m := range msgs {
		if created < 0 && bytes.Equal(m, protocol.MouseCreate()) {
			created = i
		}
		if firstMove < 0 && bytes.Equal(m, idle) {
			firstMove = i
		}
	}
	require.GreaterOrEqual(t, created, 0)
	assert.Less(t, created, firstMove, "mouse must exist before the first move report")
	assert.Equal(t, 3, readyAt, "ready runs right after the init messages")

	f.c.RequestExit(nil)
	assert.NoError(t, waitRun(t, errc))
}

func TestReadySkippedWhenInitFails(t *testing.T) {
	f := newFixture(Settings{})
	f.device.failAt = 3
	f.device.err = errors.New("broken pipe")
	called := false
	f.c.OnReady(func() { called = true })

	require.Error(t, f.c.Run(context.Background()))
	assert.False(t, called)
}

func TestRunInitFailureIsFatal(t *testing.T) {
	broken := errors.New("broken pipe")
	f := newFixture(Settings{})
	f.device.failAt = 2
	f.device.err = broken

	err := f.c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceSend)
	assert.ErrorIs(t, err, broken)
	assert.True(t, f.c.Session().Exiting())
}

func TestRunEndsOnFatalSideEffect(t *testing.T) {
	broken := errors.New("reset by peer")
	f := newFixture(Settings{})
	cancel, errc := startRun(t, f)
	defer cancel()

	require.True(t, f.c.RequestForce(true))
	require.Eventually(t, func() bool {
		return f.overlay.Shown() && f.portal.Wrapping()
	}, time.Second, time.Millisecond)

	f.device.mu.Lock()
	f.device.failAt = len(f.device.sent) + 1
	f.device.err = broken
	f.device.mu.Unlock()

	f.clock.Advance(time.Second)
	require.True(t, f.c.RequestForce(false))
	err := waitRun(t, errc)
	assert.ErrorIs(t, err, ErrDeviceSend)
	assert.ErrorIs(t, err, broken)
	assert.True(t, f.c.Session().Exiting())
}

func TestBeforeToggleClipboardSync(t *testing.T) {
	tests := []struct {
		name     string
		sync     bool
		local    fakeClipboard
		received fakeClipboard
		want     int
	}{
		{"pushes new text", true, fakeClipboard{"host", true}, fakeClipboard{"device", true}, 1},
		{"nothing received yet", true, fakeClipboard{"host", true}, fakeClipboard{}, 1},
		{"same as device", true, fakeClipboard{"same", true}, fakeClipboard{"same", true}, 0},
		{"local empty", true, fakeClipboard{}, fakeClipboard{"device", true}, 0},
		{"sync disabled", false, fakeClipboard{"host", true}, fakeClipboard{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDevice{}
			c := New(Options{
				Device:    d,
				Clipboard: tt.local,
				Received:  tt.received,
				Settings:  func() Settings { return Settings{SyncClipboard: tt.sync} },
			})
			c.beforeToggle(true)
			c.beforeToggle(false)
			assert.Len(t, d.messages(), tt.want)
			if tt.want == 1 {
				assert.Equal(t, protocol.TypeSetClipboard, d.messages()[0][0])
			}
		})
	}
}

func TestBeforeToggleSkippedWhenExiting(t *testing.T) {
	d := &fakeDevice{}
	c := New(Options{
		Device:    d,
		Clipboard: fakeClipboard{"host", true},
		Settings:  func() Settings { return Settings{SyncClipboard: true} },
	})
	c.Session().Exit()
	c.beforeToggle(true)
	assert.Empty(t, d.messages())
}

func TestSendWake(t *testing.T) {
	d := &fakeDevice{}
	c := New(Options{Device: d})
	require.NoError(t, c.SendWake())
	assert.Equal(t, [][]byte{
		protocol.InjectKeycode(input.AKeyWakeup, protocol.ActionDown),
		protocol.InjectKeycode(input.AKeyWakeup, protocol.ActionUp),
	}, d.messages())
}
