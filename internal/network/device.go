// Package network carries control messages to the device and decodes the
// messages it sends back.
package network

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"inputshare/internal/protocol"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
	keepAlive    = 15 * time.Second
	readBufSize  = 64 << 10
)

// ErrNotConnected is returned by Send before Connect or after Close.
var ErrNotConnected = errors.New("network: device not connected")

// Device is the duplex byte stream to the device's control socket.
type Device struct {
	addr string

	writeMu sync.Mutex
	conn    net.Conn

	connected atomic.Bool
	closeOnce sync.Once
}

// NewDevice creates a device client for addr ("host:port").
func NewDevice(addr string) *Device {
	return &Device{addr: addr}
}

// Connect dials the device.
func (d *Device) Connect() error {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
		Control:   controlSocket,
	}
	conn, err := dialer.Dial("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("network: connect %s: %w", d.addr, err)
	}
	d.attach(conn)
	log.Printf("Device: connected to %s", d.addr)
	return nil
}

func (d *Device) attach(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	d.writeMu.Lock()
	d.conn = conn
	d.writeMu.Unlock()
	d.connected.Store(true)
}

// Connected reports whether the stream is open.
func (d *Device) Connected() bool {
	return d.connected.Load()
}

// Send writes one encoded message. Writes are serialized so messages never
// interleave on the wire.
func (d *Device) Send(data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.conn == nil || !d.connected.Load() {
		return ErrNotConnected
	}
	d.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := d.conn.Write(data); err != nil {
		d.connected.Store(false)
		return err
	}
	return nil
}

// ReadLoop decodes device messages until the stream ends, calling handle
// for each. It returns nil when the stream was closed locally.
func (d *Device) ReadLoop(handle func(*protocol.DeviceMessage)) error {
	d.writeMu.Lock()
	conn := d.conn
	d.writeMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	buf := make([]byte, 0, readBufSize)
	chunk := make([]byte, readBufSize)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var derr error
			buf, derr = drain(buf, handle)
			if derr != nil {
				d.connected.Store(false)
				return fmt.Errorf("network: decode device message: %w", derr)
			}
		}
		if err != nil {
			if !d.connected.Swap(false) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Println("Device: stream closed by device")
			}
			return err
		}
	}
}

// drain handles every complete message at the front of buf and returns the
// unconsumed remainder.
func drain(buf []byte, handle func(*protocol.DeviceMessage)) ([]byte, error) {
	for len(buf) > 0 {
		msg, n, err := protocol.DecodeDeviceMessage(buf)
		if errors.Is(err, protocol.ErrShortMessage) {
			break
		}
		if err != nil {
			return buf, err
		}
		if handle != nil {
			handle(msg)
		}
		buf = buf[n:]
	}
	// compact so the backing array does not grow without bound
	return append(buf[:0:0], buf...), nil
}

// Close closes the stream. It is safe to call more than once.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.connected.Store(false)
		d.writeMu.Lock()
		defer d.writeMu.Unlock()
		if d.conn != nil {
			err = d.conn.Close()
		}
	})
	return err
}
