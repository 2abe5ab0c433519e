// Package reporter keeps a reconnecting stream open to the device's
// reporter service and dispatches the control opcodes it sends.
package reporter

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"inputshare/internal/protocol"
)

// RetryInterval is the wait between connection attempts.
const RetryInterval = 2 * time.Second

// DialTimeout bounds a single connection attempt.
const DialTimeout = 3 * time.Second

// Toggler receives remote-initiated "sharing disabled" requests.
type Toggler interface {
	RequestForce(on bool) bool
}

// Edge is the part of the edge portal driven by reporter opcodes.
type Edge interface {
	PauseEdgeToggling()
	ResumeEdgeToggling()
	FireRestore()
}

// Receiver connects to Addr and dispatches reporter frames.
type Receiver struct {
	Addr    string
	Toggler Toggler
	Edge    Edge
	// EdgeToggling gates the toggle opcode; it is fixed for the session.
	EdgeToggling bool

	// Retry defaults to RetryInterval.
	Retry time.Duration
	// Dial defaults to a TCP dial with DialTimeout. ctx is cancelled by Stop.
	Dial func(ctx context.Context, addr string) (net.Conn, error)
}

// Handle controls a running receiver.
type Handle struct {
	r *Receiver

	stopped atomic.Bool
	stop    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	wg      sync.WaitGroup

	mu   sync.Mutex
	conn net.Conn
}

// Start launches the reconnect loop and returns its stop handle.
func (r *Receiver) Start() *Handle {
	h := &Handle{r: r, stop: make(chan struct{})}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.wg.Add(1)
	go h.loop()
	return h
}

func (r *Receiver) dial(ctx context.Context) (net.Conn, error) {
	if r.Dial != nil {
		return r.Dial(ctx, r.Addr)
	}
	d := net.Dialer{Timeout: DialTimeout}
	return d.DialContext(ctx, "tcp", r.Addr)
}

func (r *Receiver) retry() time.Duration {
	if r.Retry > 0 {
		return r.Retry
	}
	return RetryInterval
}

func (h *Handle) loop() {
	defer h.wg.Done()
	for !h.stopped.Load() {
		conn, err := h.r.dial(h.ctx)
		switch {
		case err != nil && h.stopped.Load():
		case err != nil:
			log.Printf("Reporter: connect to %s failed, retrying: %v", h.r.Addr, err)
		case h.attach(conn):
			log.Printf("Reporter: connected to %s", h.r.Addr)
			h.serve(conn)
			h.detach(conn)
		}

		select {
		case <-h.stop:
		case <-time.After(h.r.retry()):
			log.Println("Reporter: retrying connection")
		}
	}
	log.Println("Reporter: receiver stopped")
}

// attach publishes conn so Stop can close it. It refuses when a stop is
// already in progress.
func (h *Handle) attach(conn net.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped.Load() {
		conn.Close()
		return false
	}
	h.conn = conn
	return true
}

func (h *Handle) detach(conn net.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Handle) serve(conn net.Conn) {
	frame := make([]byte, protocol.ReporterFrameSize)
	for {
		if _, err := io.ReadFull(conn, frame); err != nil {
			switch {
			case h.stopped.Load():
			case errors.Is(err, io.EOF):
				log.Println("Reporter: server closed connection")
			default:
				log.Printf("Reporter: read error: %v", err)
			}
			return
		}
		h.r.dispatch(frame[0])
	}
}

func (r *Receiver) dispatch(op uint8) {
	switch op {
	case protocol.ReporterKeepalive:
	case protocol.ReporterToggle:
		if !r.EdgeToggling {
			return
		}
		if r.Toggler != nil {
			r.Toggler.RequestForce(false)
		}
		if r.Edge != nil {
			r.Edge.FireRestore()
		}
	case protocol.ReporterPauseEdgeToggling:
		if r.Edge != nil {
			r.Edge.PauseEdgeToggling()
		}
	case protocol.ReporterResumeEdgeToggling:
		if r.Edge != nil {
			r.Edge.ResumeEdgeToggling()
		}
	default:
		log.Printf("Reporter: unexpected opcode 0x%02x", op)
	}
}

// Stop ends the loop, aborting a pending dial and closing any open
// connection to unblock a pending read, and waits for the worker. It is safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.mu.Lock()
		h.stopped.Store(true)
		if h.conn != nil {
			h.conn.Close()
		}
		h.mu.Unlock()
		h.cancel()
		close(h.stop)
	})
	h.wg.Wait()
}
