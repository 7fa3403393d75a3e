package netinfo

import (
	"net"
	"testing"
)

func TestLocalIPParses(t *testing.T) {
	ip := LocalIP()
	if ip == "" {
		t.Skip("no outbound route on this host")
	}
	if net.ParseIP(ip) == nil {
		t.Errorf("expected a parseable IP, got %q", ip)
	}
}
