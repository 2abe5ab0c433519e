package network

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// HostFromIPPort returns the address part of "ip:port". IPv6 addresses may
// be written with or without brackets; anything after the last colon is the
// port.
func HostFromIPPort(s string) string {
	if strings.Count(s, ":") > 1 {
		host := s[:strings.LastIndex(s, ":")]
		return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	host, _, _ := strings.Cut(s, ":")
	return host
}

// IsValidIP reports whether s is a bare IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// IsValidIPPort reports whether s is an address followed by a port.
func IsValidIPPort(s string) bool {
	host := HostFromIPPort(s)
	if host == s || !IsValidIP(host) {
		return false
	}
	port := s[strings.LastIndex(s, ":")+1:]
	_, err := net.LookupPort("tcp", port)
	return port != "" && err == nil
}

// LocalIPFor returns the local address the host routes through to reach
// the ip:port target. The UDP dial only resolves a route; nothing is sent.
func LocalIPFor(target string) (string, error) {
	if !IsValidIPPort(target) {
		return "", fmt.Errorf("network: %q is not an ip:port address", target)
	}
	conn, err := net.Dial("udp", target)
	if err != nil {
		return "", fmt.Errorf("network: no route to %s: %w", target, err)
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
