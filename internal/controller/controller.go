// Package controller owns the redirection state machine. It serializes
// toggle requests from hotkeys, the edge portal and the reporter, and drives
// the side effects of entering and leaving redirection.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"inputshare/internal/input"
	"inputshare/internal/protocol"
)

// Debounce is the minimum spacing between accepted toggles.
const Debounce = 250 * time.Millisecond

// Device is the input channel to the device.
type Device interface {
	Send(data []byte) error
}

// LocalClipboard reads the host clipboard.
type LocalClipboard interface {
	Read() (string, bool)
}

// ReceivedClipboard is the last clipboard text the device reported.
type ReceivedClipboard interface {
	Last() (string, bool)
}

// Overlay is shown on the host while the pointer is redirected.
type Overlay interface {
	Show()
	Hide()
}

// EdgePortal is the part of the edge portal toggles drive.
type EdgePortal interface {
	StartWrapping()
	StopWrapping()
	ConsumePassing() bool
}

// Settings are the live configuration values the controller consults.
type Settings struct {
	ShareKeyboardOnly bool
	SyncClipboard     bool
}

// Options wires a Controller. Device and Capture are required; the rest
// may be nil.
type Options struct {
	Device    Device
	Capture   input.Capture
	Portal    EdgePortal
	Overlay   Overlay
	Clipboard LocalClipboard
	Received  ReceivedClipboard
	Settings  func() Settings
	// Now defaults to time.Now and drives the debounce clock.
	Now func() time.Time
}

// Controller is the toggle controller.
type Controller struct {
	session *Session
	opts    Options

	mu         sync.Mutex
	lastToggle time.Time
	listeners  []func(redirecting bool)
	ready      []func()

	clipSeq atomic.Uint64
}

// New creates a controller with a fresh session.
func New(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings == nil {
		opts.Settings = func() Settings { return Settings{} }
	}
	return &Controller{
		session: NewSession(),
		opts:    opts,
	}
}

// Session returns the shared session state.
func (c *Controller) Session() *Session {
	return c.session
}

// AttachPortal sets the edge portal when it is built after the controller.
// It must be called before Run.
func (c *Controller) AttachPortal(p EdgePortal) {
	c.opts.Portal = p
}

// Redirecting reports the current redirection flag.
func (c *Controller) Redirecting() bool {
	return c.session.Redirecting()
}

// OnChange registers fn to run after every applied transition.
func (c *Controller) OnChange(fn func(redirecting bool)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// OnReady registers fn to run once the session init messages have been
// sent, before the first transition is applied. Movement and capture start
// here so no report reaches the device ahead of its virtual devices.
func (c *Controller) OnReady(fn func()) {
	c.mu.Lock()
	c.ready = append(c.ready, fn)
	c.mu.Unlock()
}

// RequestToggle flips redirection from the toggle hotkey. The chord's
// modifiers are released locally first so they do not stay stuck on the
// host. It reports whether the request was accepted.
func (c *Controller) RequestToggle() bool {
	return c.request(nil, true)
}

// RequestForce sets redirection to on. It reports whether the request was
// accepted.
func (c *Controller) RequestForce(on bool) bool {
	return c.request(&on, false)
}

// Toggle applies an API toggle request: "on", "off", or "" to flip.
func (c *Controller) Toggle(state string) error {
	var force *bool
	switch state {
	case "":
	case "on", "off":
		on := state == "on"
		force = &on
	default:
		return fmt.Errorf("invalid toggle state %q", state)
	}
	if !c.request(force, false) {
		return ErrDebounced
	}
	return nil
}

func (c *Controller) request(force *bool, fromHotkey bool) bool {
	c.mu.Lock()
	now := c.opts.Now()
	if !c.lastToggle.IsZero() && now.Sub(c.lastToggle) < Debounce {
		c.mu.Unlock()
		log.Println("Controller: toggle debounced")
		return false
	}
	c.lastToggle = now
	next := !c.session.Redirecting()
	if force != nil {
		next = *force
	}
	c.session.setRedirecting(next)
	c.mu.Unlock()

	if fromHotkey && c.opts.Capture != nil {
		if err := c.opts.Capture.Release("CTRL", "ALT"); err != nil {
			log.Printf("Controller: release hotkey modifiers: %v", err)
		}
	}
	c.session.signalToggle()
	return true
}

// RequestExit ends the session. The first non-nil cause becomes the
// session's terminal error.
func (c *Controller) RequestExit(cause error) {
	c.session.fail(cause)
	c.RequestForce(false)
	c.session.Exit()
}

// Run sends the session init messages and then runs the coordinating loop
// until exit is requested, ctx is cancelled or a side effect fails. It
// returns the terminal error, nil on a clean exit.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.initDevice(); err != nil {
		c.session.fail(err)
		c.session.Exit()
		return err
	}
	c.mu.Lock()
	ready := append([]func(){}, c.ready...)
	c.mu.Unlock()
	for _, fn := range ready {
		fn()
	}
	stop := context.AfterFunc(ctx, func() { c.RequestExit(nil) })
	defer stop()

	applied := false
	for !c.session.Exiting() && c.session.Err() == nil {
		on := c.session.Redirecting()
		if err := c.afterToggle(on); err != nil {
			c.session.fail(err)
			break
		}
		applied = on

		select {
		case <-c.session.Done():
		case <-c.session.Toggled():
			c.beforeToggle(c.session.Redirecting())
		}
	}

	if applied || c.session.Redirecting() {
		c.session.setRedirecting(false)
		if err := c.afterToggle(false); err != nil {
			log.Printf("Controller: final cleanup: %v", err)
		}
	}
	c.session.Exit()
	return c.session.Err()
}

func (c *Controller) initDevice() error {
	for _, msg := range [][]byte{
		protocol.GetClipboard(),
		protocol.KeyboardCreate(),
		protocol.MouseCreate(),
	} {
		if err := c.send(msg); err != nil {
			return fmt.Errorf("session init: %w", err)
		}
	}
	return nil
}

// beforeToggle pushes the host clipboard to the device when entering
// redirection, unless it is what the device last sent us.
func (c *Controller) beforeToggle(on bool) {
	if !on || c.opts.Clipboard == nil {
		return
	}
	var last string
	var hasLast bool
	if c.opts.Received != nil {
		last, hasLast = c.opts.Received.Last()
	}
	current, ok := c.opts.Clipboard.Read()
	if c.session.Exiting() {
		return
	}
	if !c.opts.Settings().SyncClipboard || !ok {
		return
	}
	if hasLast && last == current {
		return
	}
	c.sendOrExit(protocol.SetClipboard(c.clipSeq.Add(1), current, false))
}

func (c *Controller) afterToggle(on bool) error {
	settings := c.opts.Settings()
	if on {
		if !settings.ShareKeyboardOnly {
			if c.opts.Overlay != nil {
				c.opts.Overlay.Show()
			}
			if c.opts.Portal != nil {
				c.opts.Portal.StartWrapping()
			}
		}
		if c.opts.Capture != nil {
			c.opts.Capture.Suppress(true)
		}
		log.Println("Controller: input redirecting enabled")
	} else {
		if c.opts.Capture != nil {
			c.opts.Capture.Suppress(false)
		}
		if err := c.send(protocol.KeyboardEmpty()); err != nil {
			return err
		}
		if c.opts.Overlay != nil {
			c.opts.Overlay.Hide()
		}
		if c.opts.Portal != nil {
			c.opts.Portal.StopWrapping()
		}
		log.Println("Controller: input redirecting disabled")
	}

	c.mu.Lock()
	fns := append([]func(bool){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(on)
	}
	return nil
}

// SendClipboard pushes the host clipboard to the device on demand.
func (c *Controller) SendClipboard() error {
	if c.opts.Clipboard == nil {
		return errors.New("no clipboard available")
	}
	text, ok := c.opts.Clipboard.Read()
	if !ok {
		return errors.New("clipboard is empty")
	}
	return c.send(protocol.SetClipboard(c.clipSeq.Add(1), text, false))
}

// SendMove writes a mouse move report. It implements pacer.Sender.
func (c *Controller) SendMove(dx, dy int, buttons uint8) error {
	return c.send(protocol.MouseMove(dx, dy, buttons))
}

// SendWake writes a wakeup key press and release.
func (c *Controller) SendWake() error {
	if err := c.send(protocol.InjectKeycode(input.AKeyWakeup, protocol.ActionDown)); err != nil {
		return err
	}
	return c.send(protocol.InjectKeycode(input.AKeyWakeup, protocol.ActionUp))
}

func (c *Controller) send(data []byte) error {
	if err := c.opts.Device.Send(data); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceSend, err)
	}
	return nil
}

// sendOrExit sends data and ends the session on failure.
func (c *Controller) sendOrExit(data []byte) {
	if err := c.send(data); err != nil {
		log.Printf("Controller: %v", err)
		c.RequestExit(err)
	}
}
