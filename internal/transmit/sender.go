package transmit

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/cwsl/pagewatch/internal/perr"
	"github.com/cwsl/pagewatch/internal/rtpflow"
)

// randUint32 returns a cryptographically random u32, per spec.md §4.10's
// SSRC generation requirement.
func randUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on the system CSPRNG does not fail in practice;
		// panicking here would be worse than a zero SSRC is unlikely.
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// packetSender owns the multicast send socket and TTL, and builds RTP
// packets with monotonically incrementing sequence/timestamp per
// spec.md §4.10 step 4.
type packetSender struct {
	conn *net.UDPConn
	pt   uint8
	ssrc uint32
	seq  uint16
	ts   uint32
}

// newPacketSender opens a send socket for addr:port with the given TTL
// (Run rejects values outside [1,255] before calling this).
func newPacketSender(addr string, port uint16, ttl int, pt uint8) (*packetSender, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(addr), Port: int(port)}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, perr.New(perr.SocketIoFatal, fmt.Sprintf("%s:%d", addr, port), err)
	}
	if p := conn.LocalAddr(); p != nil {
		if err := setMulticastTTL(conn, ttl); err != nil {
			conn.Close()
			return nil, perr.New(perr.SocketIoFatal, fmt.Sprintf("%s:%d", addr, port), err)
		}
	}
	return &packetSender{
		conn: conn,
		pt:   pt,
		ssrc: randUint32(),
		seq:  uint16(randUint32()),
	}, nil
}

// send builds and writes one RTP packet carrying payload, advancing
// sequence and timestamp. marker sets the RTP marker bit.
func (ps *packetSender) send(ctx context.Context, payload []byte, frameSamples uint32, marker bool) error {
	pkt := rtpflow.Packet{
		PayloadType:    ps.pt,
		Marker:         marker,
		SequenceNumber: ps.seq,
		Timestamp:      ps.ts,
		SSRC:           ps.ssrc,
		Payload:        payload,
	}
	buf, err := rtpflow.Build(pkt)
	if err != nil {
		return err
	}
	if _, err := ps.conn.Write(buf); err != nil {
		return perr.New(perr.SocketIoFatal, "", err)
	}
	ps.seq++
	ps.ts += frameSamples
	return nil
}

func (ps *packetSender) close() error { return ps.conn.Close() }
