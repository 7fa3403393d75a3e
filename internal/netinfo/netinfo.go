// Package netinfo resolves best-effort network facts about the local host.
package netinfo

import "net"

// LocalIP returns the host's preferred outbound IPv4 address, or "" when it
// cannot be resolved. Dialing UDP sends no packets; it only selects a route.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer func() { _ = conn.Close() }()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return ""
	}
	return addr.IP.String()
}
