package pacer

import (
	"sync"
	"time"
)

// Sample is one scaled pointer delta.
type Sample struct {
	DX, DY int
}

// Queue is a bounded FIFO for a single producer and a single consumer.
// Push never blocks and never rejects: when full, the oldest sample is
// dropped to make room for the newest.
type Queue struct {
	mu    sync.Mutex
	buf   []Sample
	head  int
	size  int
	ready chan struct{}
}

// NewQueue creates a queue holding at most capacity samples.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		buf:   make([]Sample, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends s, evicting the oldest sample when full. It reports whether
// a sample was evicted.
func (q *Queue) Push(s Sample) (evicted bool) {
	q.mu.Lock()
	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = s
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted
}

// TryPop removes the oldest sample without blocking.
func (q *Queue) TryPop() (Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return Sample{}, false
	}
	s := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return s, true
}

// PopTimeout waits up to timeout for a sample. done aborts the wait early.
func (q *Queue) PopTimeout(timeout time.Duration, done <-chan struct{}) (Sample, bool) {
	if s, ok := q.TryPop(); ok {
		return s, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.ready:
			if s, ok := q.TryPop(); ok {
				return s, true
			}
		case <-timer.C:
			return q.TryPop()
		case <-done:
			return Sample{}, false
		}
	}
}

// Len returns the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Drain removes and returns every queued sample in order.
func (q *Queue) Drain() []Sample {
	var out []Sample
	for {
		s, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}
