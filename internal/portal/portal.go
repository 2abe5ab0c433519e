// Package portal watches the host cursor for screen-edge contact. While not
// redirecting, touching the edge that faces the device requests
// redirection. While redirecting, touching any edge wraps the pointer to
// the opposite edge so it never leaves the desktop.
package portal

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"inputshare/internal/input"
)

// Interval is the polling period.
const Interval = time.Millisecond

// SideMargin keeps a restored pointer this many pixels away from the
// triggering edge.
const SideMargin = 2

// Position is the side of the host screen the device sits on.
type Position string

const (
	Top    Position = "top"
	Right  Position = "right"
	Bottom Position = "bottom"
	Left   Position = "left"
)

// Config is fixed for a session.
type Config struct {
	Enabled  bool
	Position Position
	// Margin excludes the corners of a left/right edge from triggering.
	Margin int
}

// Toggler is the slice of the toggle controller the portal drives.
type Toggler interface {
	Redirecting() bool
	RequestForce(on bool) bool
}

// Portal is the edge polling loop.
type Portal struct {
	cfg     Config
	pointer input.Pointer
	screen  input.Screen
	toggler Toggler

	paused         atomic.Bool // host-initiated, gates the whole loop
	togglingPaused atomic.Bool // device-initiated, gates only the trigger
	wrapping       atomic.Bool // set while redirecting with the pointer shared
	passing        atomic.Bool // one-shot: pointer was just teleported

	mu        sync.Mutex
	preToggle *[2]int
	armed     bool
	restorers []func()

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a portal. The loop does not run until Start.
func New(cfg Config, pointer input.Pointer, screen input.Screen, toggler Toggler) *Portal {
	p := &Portal{
		cfg:     cfg,
		pointer: pointer,
		screen:  screen,
		toggler: toggler,
		armed:   true,
		done:    make(chan struct{}),
	}
	p.OnRestore(p.Restore)
	return p
}

// Start launches the polling loop.
func (p *Portal) Start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *Portal) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			log.Println("Portal: closed")
			return
		case <-ticker.C:
			if !p.paused.Load() {
				p.tick()
			}
		}
	}
}

// tick runs one poll. Exactly one branch runs, chosen by the redirection
// flag read at its start.
func (p *Portal) tick() {
	x, y, ok := p.pointer.Position()
	if !ok {
		return
	}
	width, height := p.screen.Size()
	atLeft := x <= 0
	atRight := x >= width-1
	atTop := y <= 0
	atBottom := y >= height-1

	if p.toggler.Redirecting() {
		if p.wrapping.Load() {
			p.wrap(x, y, width, height, atLeft, atRight, atTop, atBottom)
		}
		return
	}

	if !p.cfg.Enabled || p.togglingPaused.Load() {
		return
	}

	inRange := p.cfg.Margin < y && y < height-p.cfg.Margin
	var hit bool
	switch p.cfg.Position {
	case Right:
		hit = atRight && inRange
	case Left:
		hit = atLeft && inRange
	case Top:
		hit = atTop
	case Bottom:
		hit = atBottom
	}

	p.mu.Lock()
	if !hit {
		p.armed = true
		p.mu.Unlock()
		return
	}
	if !p.armed {
		p.mu.Unlock()
		return
	}
	p.armed = false
	p.preToggle = &[2]int{x, y}
	p.mu.Unlock()

	p.toggler.RequestForce(true)
}

func (p *Portal) wrap(x, y, width, height int, atLeft, atRight, atTop, atBottom bool) {
	if !(atLeft || atRight || atTop || atBottom) {
		return
	}
	nx, ny := x, y
	switch {
	case atLeft:
		nx = width - 2
	case atRight:
		nx = 1
	}
	switch {
	case atTop:
		ny = height - 2
	case atBottom:
		ny = 1
	}
	p.passing.Store(true)
	if err := p.pointer.SetPosition(nx, ny); err != nil {
		log.Printf("Portal: wrap failed: %v", err)
	}
}

// ConsumePassing reports and clears the one-shot pass-through flag. The
// pointer-move handler uses it to re-baseline instead of sending a jump.
func (p *Portal) ConsumePassing() bool {
	return p.passing.Swap(false)
}

// Pause stops all scanning and abandons a pending restore position.
func (p *Portal) Pause() {
	p.paused.Store(true)
	p.forgetPreToggle()
}

func (p *Portal) forgetPreToggle() {
	p.mu.Lock()
	p.preToggle = nil
	p.mu.Unlock()
}

// Resume restarts scanning after Pause.
func (p *Portal) Resume() {
	p.paused.Store(false)
}

// StartWrapping enables edge wrapping while redirecting.
func (p *Portal) StartWrapping() {
	p.wrapping.Store(true)
}

// StopWrapping disables edge wrapping.
func (p *Portal) StopWrapping() {
	p.wrapping.Store(false)
}

// PauseEdgeToggling suppresses the redirection trigger only. A pending
// restore position is abandoned.
func (p *Portal) PauseEdgeToggling() {
	log.Println("Portal: edge toggling paused")
	p.togglingPaused.Store(true)
	p.forgetPreToggle()
}

// ResumeEdgeToggling re-enables the redirection trigger.
func (p *Portal) ResumeEdgeToggling() {
	log.Println("Portal: edge toggling resumed")
	p.togglingPaused.Store(false)
}

// EdgeTogglingPaused reports whether the device paused edge toggling.
func (p *Portal) EdgeTogglingPaused() bool {
	return p.togglingPaused.Load()
}

// OnRestore registers fn to run when the device confirms it toggled off.
func (p *Portal) OnRestore(fn func()) {
	p.mu.Lock()
	p.restorers = append(p.restorers, fn)
	p.mu.Unlock()
}

// FireRestore invokes every registered restore callback.
func (p *Portal) FireRestore() {
	p.mu.Lock()
	fns := append([]func(){}, p.restorers...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Restore moves the pointer back next to where the edge trigger fired,
// just inside the triggering edge. The remembered position is consumed.
func (p *Portal) Restore() {
	if p.paused.Load() || p.togglingPaused.Load() {
		return
	}
	p.mu.Lock()
	pos := p.preToggle
	p.preToggle = nil
	p.mu.Unlock()
	if pos == nil {
		return
	}

	x, y := pos[0], pos[1]
	switch p.cfg.Position {
	case Right:
		x -= SideMargin
	case Left:
		x = SideMargin
	case Top:
		y = SideMargin
	case Bottom:
		y -= SideMargin
	}
	p.passing.Store(true)
	if err := p.pointer.SetPosition(x, y); err != nil {
		log.Printf("Portal: restore failed: %v", err)
	}
}

// Close stops the loop and waits for it to exit.
func (p *Portal) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}
