// Package mcast implements the multicast receiver (C2, spec.md §4.2):
// per-endpoint UDP sockets joined to a multicast group, delivering
// datagrams tagged with their monotonic arrival time. Grounded on the
// teacher's audio.go setupDataSocket/receiveLoop, generalized from a
// single radiod data-group subscription to one socket per expanded
// paging endpoint and from loopback-always-joined to an explicit
// "join every non-loopback interface, or one configured interface" policy.
package mcast

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/cwsl/pagewatch/internal/endpoint"
	"github.com/cwsl/pagewatch/internal/perr"
)

const (
	// MaxDatagramSize: truncated/oversized datagrams are dropped, per spec.md §4.2.
	MaxDatagramSize = 65536
	minRecvBuffer   = 1 << 20 // 1 MiB
)

// Datagram is one received packet with its arrival instant.
type Datagram struct {
	Payload []byte
	Arrival time.Time
}

// Receiver owns one UDP socket joined to one multicast endpoint.
type Receiver struct {
	ep        endpoint.Endpoint
	conn      *net.UDPConn
	mu        sync.Mutex
	truncated uint64
}

// Open binds, joins, and configures a socket for ep. If iface is nil, the
// group is joined on every non-loopback interface found on the host.
func Open(ep endpoint.Endpoint, iface *net.Interface) (*Receiver, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("SO_REUSEADDR: %w", err)
					return
				}
				// Best-effort: not all platforms support SO_REUSEPORT.
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	addr := fmt.Sprintf("0.0.0.0:%d", ep.Port)
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, perr.New(perr.SocketIoFatal, ep.String(), err)
	}
	conn := pc.(*net.UDPConn)

	if err := conn.SetReadBuffer(minRecvBuffer); err != nil {
		// Non-fatal: spec.md §4.2 says "if permitted".
		_ = err
	}

	p := ipv4.NewPacketConn(conn)
	groupAddr := &net.UDPAddr{IP: net.ParseIP(ep.Addr)}

	ifaces, err := joinInterfaces(iface)
	if err != nil {
		conn.Close()
		return nil, perr.New(perr.SocketIoFatal, ep.String(), err)
	}
	joined := 0
	for _, ifi := range ifaces {
		if err := p.JoinGroup(ifi, groupAddr); err == nil {
			joined++
		}
	}
	if joined == 0 {
		conn.Close()
		return nil, perr.Newf(perr.SocketIoFatal, ep.String(), "failed to join multicast group on any interface")
	}

	_ = p.SetMulticastLoopback(false)

	return &Receiver{ep: ep, conn: conn}, nil
}

func joinInterfaces(iface *net.Interface) ([]*net.Interface, error) {
	if iface != nil {
		return []*net.Interface{iface}, nil
	}
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range all {
		ifi := all[i]
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, &ifi)
	}
	return out, nil
}

// Read blocks for the next datagram, honoring ctx cancellation via a
// read-deadline poll loop. Truncated datagrams (> MaxDatagramSize) are
// dropped and counted, not returned as an error, per spec.md §4.2.
func (r *Receiver) Read(ctx context.Context) (Datagram, error) {
	buf := make([]byte, MaxDatagramSize+1)
	for {
		select {
		case <-ctx.Done():
			return Datagram{}, ctx.Err()
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return Datagram{}, perr.New(perr.SocketIoFatal, r.ep.String(), err)
		}
		arrival := time.Now()

		if n > MaxDatagramSize {
			r.mu.Lock()
			r.truncated++
			r.mu.Unlock()
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		return Datagram{Payload: payload, Arrival: arrival}, nil
	}
}

// Truncated reports how many oversized datagrams have been dropped.
func (r *Receiver) Truncated() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.truncated
}

// Close releases the socket.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
