//go:build linux

package network

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// userTimeoutMs bounds how long unacknowledged writes may linger before the
// kernel drops the connection, so a vanished device surfaces as a send error.
const userTimeoutMs = 5000

func controlSocket(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, userTimeoutMs)
	})
	if err != nil {
		return err
	}
	return serr
}
