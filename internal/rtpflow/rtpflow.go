// Package rtpflow is a thin borrowing wrapper over pion/rtp that exposes
// the fields pagewatch's pipeline needs (C3 in spec.md §4.3) and converts
// parse failures into the MalformedRtp domain error kind.
package rtpflow

import (
	"github.com/pion/rtp"

	"github.com/cwsl/pagewatch/internal/perr"
)

// Packet is the parsed view spec.md §3 describes: version is always 2
// (Parse rejects anything else), CSRCs and header extensions are
// already skipped by the underlying parser, and Payload borrows directly
// from the input buffer — callers that reuse that buffer must copy the
// payload first. The monitor's per-endpoint worker needs no copy of its
// own, since mcast.Receiver.Read returns a fresh buffer per datagram.
type Packet struct {
	PayloadType    uint8
	Marker         bool
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	Payload        []byte
}

// Parse decodes an RTP packet from buf. It rejects version != 2 and
// truncated headers, both surfaced as *perr.Error with Kind MalformedRtp
// so the caller can count and sample-log the drop per spec.md §7.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < 12 {
		return Packet{}, perr.Newf(perr.MalformedRtp, "", "packet too short (%d bytes)", len(buf))
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return Packet{}, perr.New(perr.MalformedRtp, "", err)
	}
	if pkt.Version != 2 {
		return Packet{}, perr.Newf(perr.MalformedRtp, "", "unsupported RTP version %d", pkt.Version)
	}

	return Packet{
		PayloadType:    pkt.PayloadType,
		Marker:         pkt.Marker,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
		Payload:        pkt.Payload,
	}, nil
}

// Build marshals an RTP packet for the transmit pipeline (spec.md §4.10
// step 4). CSRC count is always 0 and no extension header is emitted, per
// spec.md §6.
func Build(p Packet) ([]byte, error) {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         p.Marker,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.SequenceNumber,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: p.Payload,
	}
	return pkt.Marshal()
}

