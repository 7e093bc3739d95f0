package transmit

import (
	"net"

	"golang.org/x/net/ipv4"
)

// setMulticastTTL sets the outgoing multicast TTL on a connected UDP
// socket, per spec.md §4.10 ("TTL defaults to 1 (site-local); configurable
// to [1, 255]"). Grounded on the same golang.org/x/net/ipv4 dependency
// internal/mcast uses for JoinGroup, applied here to ipv4.Conn instead of
// ipv4.PacketConn since the send side uses a connected socket.
func setMulticastTTL(conn *net.UDPConn, ttl int) error {
	return ipv4.NewConn(conn).SetMulticastTTL(ttl)
}
