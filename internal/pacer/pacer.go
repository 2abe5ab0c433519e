// Package pacer smooths and rate-limits outgoing pointer movement and keeps
// the device's input stream alive while the pointer is idle.
package pacer

import (
	"log"
	"math"
	"sync"
	"time"
)

const (
	// QueueCapacity bounds the samples waiting to be sent.
	QueueCapacity = 5

	// Interval is the consumer's wait per iteration, the most common
	// mouse polling rate.
	Interval = time.Second / 125

	// IdleWindow is how long zero-delta moves keep flowing after the last
	// real movement.
	IdleWindow = 5 * time.Second

	// IdleSendInterval spaces zero-delta moves: one wait plus one send.
	IdleSendInterval = 2 * Interval

	// WakeInterval spaces wake signals once the idle window has passed.
	WakeInterval = 5 * time.Second
)

// Sender writes pointer traffic to the device.
type Sender interface {
	SendMove(dx, dy int, buttons uint8) error
	SendWake() error
}

// Options wires the pacer to session state. Nil funcs read as zero values.
type Options struct {
	MouseSpeed  func() float64
	KeepAwake   func() bool
	ManualSleep func() bool
	Buttons     func() uint8
	// OnFatal receives the first send error; the consumer loop exits after.
	OnFatal func(error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pacer owns the movement queue, the producer's last pointer position and
// the consumer loop.
type Pacer struct {
	sender Sender
	opts   Options
	queue  *Queue

	pointMu   sync.Mutex
	lastPoint *[2]int

	// consumer-only state
	lastMove time.Time
	lastSend time.Time
	lastWake time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a pacer sending through sender.
func New(sender Sender, opts Options) *Pacer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pacer{
		sender: sender,
		opts:   opts,
		queue:  NewQueue(QueueCapacity),
		done:   make(chan struct{}),
	}
}

// Scale returns the damping factor for a move of the given speed.
// Slow moves saturate at max(1, factor/2.5); fast moves are damped as
// speed^-0.6 and tend to zero for very large speeds.
func Scale(speed, factor float64) float64 {
	if speed == 0 {
		return 1
	}
	ceiling := math.Max(1, factor/2.5)
	return math.Min(ceiling, factor/math.Pow(speed, 0.6))
}

// Damp applies Scale to a raw delta, truncating toward zero.
func Damp(dx, dy int, factor float64) (int, int) {
	speed := math.Hypot(float64(dx), float64(dy))
	s := Scale(speed, factor)
	return int(float64(dx) * s), int(float64(dy) * s)
}

// Track is the producer side for an absolute pointer position. The first
// position after a reset only establishes the baseline.
func (p *Pacer) Track(x, y int) {
	p.pointMu.Lock()
	last := p.lastPoint
	p.lastPoint = &[2]int{x, y}
	p.pointMu.Unlock()

	if last == nil {
		return
	}
	factor := 1.0
	if p.opts.MouseSpeed != nil {
		factor = p.opts.MouseSpeed()
	}
	dx, dy := Damp(x-last[0], y-last[1], factor)
	p.Submit(dx, dy)
}

// Rebase sets the baseline without producing a sample, used after the
// pointer was teleported.
func (p *Pacer) Rebase(x, y int) {
	p.pointMu.Lock()
	p.lastPoint = &[2]int{x, y}
	p.pointMu.Unlock()
}

// ResetPoint forgets the baseline.
func (p *Pacer) ResetPoint() {
	p.pointMu.Lock()
	p.lastPoint = nil
	p.pointMu.Unlock()
}

// Submit enqueues an already scaled delta without blocking.
func (p *Pacer) Submit(dx, dy int) {
	p.queue.Push(Sample{DX: dx, DY: dy})
}

// Queue exposes the movement queue.
func (p *Pacer) Queue() *Queue {
	return p.queue
}

// Start runs the consumer loop in a goroutine.
func (p *Pacer) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run()
	}()
}

// Run is the consumer loop. It returns on Stop or on the first send error,
// which is handed to OnFatal.
func (p *Pacer) Run() {
	p.reset(p.opts.Now())
	for {
		s, ok := p.queue.PopTimeout(Interval, p.done)
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.step(s, ok, p.opts.Now()); err != nil {
			log.Printf("Pacer: send failed: %v", err)
			if p.opts.OnFatal != nil {
				p.opts.OnFatal(err)
			}
			return
		}
	}
}

// reset restarts the idle clocks as if a real move had just been sent.
func (p *Pacer) reset(now time.Time) {
	p.lastMove = now
	p.lastSend = now
	p.lastWake = now
}

// step handles one loop iteration: a real sample, or a timeout. Timeouts
// arrive every Interval; zero moves go out every IdleSendInterval and wakes
// every WakeInterval, both measured on the clock.
func (p *Pacer) step(s Sample, ok bool, now time.Time) error {
	buttons := uint8(0)
	if p.opts.Buttons != nil {
		buttons = p.opts.Buttons()
	}
	if ok {
		p.reset(now)
		return p.sender.SendMove(s.DX, s.DY, buttons)
	}

	if now.Sub(p.lastMove) <= IdleWindow {
		if now.Sub(p.lastSend) < IdleSendInterval {
			return nil
		}
		p.lastSend = now
		return p.sender.SendMove(0, 0, buttons)
	}

	if p.opts.KeepAwake == nil || !p.opts.KeepAwake() {
		return nil
	}
	if now.Sub(p.lastWake) < WakeInterval {
		return nil
	}
	// A wake skipped for manual sleep still counts toward the schedule.
	p.lastWake = now
	if p.opts.ManualSleep != nil && p.opts.ManualSleep() {
		return nil
	}
	return p.sender.SendWake()
}

// Stop ends the consumer loop and waits for it when started with Start.
func (p *Pacer) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}
