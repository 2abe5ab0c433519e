package input

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (s *recordingSink) add(e string) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) KeyDown(name string)  { s.add("down " + name) }
func (s *recordingSink) KeyUp(name string)    { s.add("up " + name) }
func (s *recordingSink) PointerMove(x, y int) { s.add(fmt.Sprintf("move %d,%d", x, y)) }
func (s *recordingSink) PointerButton(x, y int, b Button, pressed bool) {
	s.add(fmt.Sprintf("button %d %v", b, pressed))
}
func (s *recordingSink) PointerScroll(x, y, dx, dy int) { s.add(fmt.Sprintf("scroll %d,%d", dx, dy)) }

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := newDispatcher(sink, 8)
	defer d.close()

	require.True(t, d.enqueue(event{kind: eventKeyDown, name: "A"}))
	require.True(t, d.enqueue(event{kind: eventMove, x: 3, y: 4}))
	require.True(t, d.enqueue(event{kind: eventButton, button: ButtonLeft, pressed: true}))
	require.True(t, d.enqueue(event{kind: eventScroll, dy: -1}))
	require.True(t, d.enqueue(event{kind: eventKeyUp, name: "A"}))

	want := []string{
		"down A",
		"move 3,4",
		fmt.Sprintf("button %d true", ButtonLeft),
		"scroll 0,-1",
		"up A",
	}
	require.Eventually(t, func() bool { return len(sink.list()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, sink.list())
}

// A stalled sink must never block the hook side.
func TestDispatcherEnqueueNeverBlocks(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := newDispatcher(sink, 2)

	start := time.Now()
	accepted := 0
	for i := 0; i < 10; i++ {
		if d.enqueue(event{kind: eventMove, x: i}) {
			accepted++
		}
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.GreaterOrEqual(t, accepted, 2)
	assert.Less(t, accepted, 10, "a full queue drops events")

	close(sink.block)
	d.close()
	assert.False(t, d.enqueue(event{kind: eventMove}), "closed dispatcher refuses events")
}
