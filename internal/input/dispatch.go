package input

import (
	"log"
	"sync"
)

// DispatchQueueSize bounds the events a hook may queue ahead of the sink.
const DispatchQueueSize = 1024

type eventKind uint8

const (
	eventKeyDown eventKind = iota
	eventKeyUp
	eventMove
	eventButton
	eventScroll
)

type event struct {
	kind    eventKind
	name    string
	x, y    int
	dx, dy  int
	button  Button
	pressed bool
}

// dispatcher hands hook events to a Sink on its own goroutine so hook
// callbacks return without waiting on the sink.
type dispatcher struct {
	sink   Sink
	events chan event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func newDispatcher(sink Sink, size int) *dispatcher {
	d := &dispatcher{
		sink:   sink,
		events: make(chan event, size),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// enqueue never blocks. A full queue drops the event and reports false.
func (d *dispatcher) enqueue(ev event) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.events <- ev:
		return true
	default:
		log.Printf("Trap: dispatch queue full, dropping event %d", ev.kind)
		return false
	}
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) deliver(ev event) {
	switch ev.kind {
	case eventKeyDown:
		d.sink.KeyDown(ev.name)
	case eventKeyUp:
		d.sink.KeyUp(ev.name)
	case eventMove:
		d.sink.PointerMove(ev.x, ev.y)
	case eventButton:
		d.sink.PointerButton(ev.x, ev.y, ev.button, ev.pressed)
	case eventScroll:
		d.sink.PointerScroll(ev.x, ev.y, ev.dx, ev.dy)
	}
}

// close stops delivery and waits for the goroutine. Queued events are
// discarded.
func (d *dispatcher) close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}
