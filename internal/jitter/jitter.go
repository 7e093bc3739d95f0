// Package jitter implements the per-SSRC sequence and arrival-jitter
// accountant (C5, spec.md §4.5): RFC 3550 jitter estimation plus
// dropout/reorder/restart classification and loss accounting at page close.
package jitter

import "math"

// MaxDropout bounds how large a backward sequence jump may be before it is
// treated as a stream restart rather than a reorder/duplicate.
const MaxDropout = 3000

// Observation classifies what a packet did to the stream's sequence state.
type Observation int

const (
	// ObsFirst is returned for the very first packet seen on a Stream.
	ObsFirst Observation = iota
	// ObsAdvance means the sequence number moved the window forward.
	ObsAdvance
	// ObsReorder means a duplicate or small backward reorder; not loss.
	ObsReorder
	// ObsRestart means a large backward jump: treat as a new source.
	// The caller must not keep using this Stream — close the page/stream
	// and start a fresh Stream, re-observing this packet as its first.
	ObsRestart
)

// NetworkStats mirrors spec.md §3's NetworkStats accumulator, minus the
// byte count (tracked by the caller alongside payload sizes).
type NetworkStats struct {
	Packets     uint64
	Expected    uint64
	Lost        uint64
	LossPercent float64
	JitterMs    float64
	FirstSeq    uint16
	HighestSeq  uint16
}

// Stream tracks one (endpoint, SSRC) stream's sequence and jitter state.
// Not safe for concurrent use; callers serialize per the ordering
// guarantee in spec.md §5 (one goroutine per endpoint stream).
type Stream struct {
	rtpClockRate int

	initialized bool
	baseSeq     uint16
	highestSeq  uint16
	cycles      uint32
	packets     uint64

	lastTimestamp  uint32
	haveLastArrival bool
	lastArrivalSec  float64

	jitter float64 // running RFC 3550 jitter estimate, in RTP clock units
}

// NewStream creates a Stream for a source whose RTP clock runs at
// rtpClockRate Hz (the codec's sample rate, per spec.md §4.5).
func NewStream(rtpClockRate int) *Stream {
	return &Stream{rtpClockRate: rtpClockRate}
}

// Observe records one packet's sequence number, RTP timestamp, and arrival
// time (seconds on a monotonic clock, e.g. from time.Time.Sub of a fixed
// epoch). It returns how the packet classified against the running state.
func (s *Stream) Observe(seq uint16, rtpTimestamp uint32, arrivalSec float64) Observation {
	if !s.initialized {
		s.initialized = true
		s.baseSeq = seq
		s.highestSeq = seq
		s.packets = 1
		s.lastTimestamp = rtpTimestamp
		s.lastArrivalSec = arrivalSec
		s.haveLastArrival = true
		return ObsFirst
	}

	delta := int16(seq - s.highestSeq)
	if delta > 0 {
		if seq < s.highestSeq {
			s.cycles++
		}
		s.highestSeq = seq
		s.packets++
		s.updateJitter(rtpTimestamp, arrivalSec)
		s.lastTimestamp = rtpTimestamp
		s.lastArrivalSec = arrivalSec
		return ObsAdvance
	}

	absDelta := int(delta)
	if absDelta < 0 {
		absDelta = -absDelta
	}
	if absDelta <= MaxDropout {
		s.packets++
		s.updateJitter(rtpTimestamp, arrivalSec)
		s.lastTimestamp = rtpTimestamp
		s.lastArrivalSec = arrivalSec
		return ObsReorder
	}

	return ObsRestart
}

func (s *Stream) updateJitter(rtpTimestamp uint32, arrivalSec float64) {
	if s.rtpClockRate <= 0 || !s.haveLastArrival {
		return
	}
	arrivalDeltaUnits := (arrivalSec - s.lastArrivalSec) * float64(s.rtpClockRate)
	timestampDelta := float64(int32(rtpTimestamp - s.lastTimestamp))
	d := arrivalDeltaUnits - timestampDelta
	s.jitter += (math.Abs(d) - s.jitter) / 16
}

// JitterMs reports the running jitter estimate in milliseconds.
func (s *Stream) JitterMs() float64 {
	if s.rtpClockRate <= 0 {
		return 0
	}
	return s.jitter / float64(s.rtpClockRate) * 1000
}

// Stats finalizes NetworkStats per spec.md §4.5's close-time formula:
// expected = highestSeq - baseSeq + 1 (modulo wraparound via the cycle
// counter), loss_percent = 100 * max(0, expected-received) / max(1, expected).
func (s *Stream) Stats() NetworkStats {
	expected := int64(s.cycles)*65536 + int64(s.highestSeq) - int64(s.baseSeq) + 1
	if expected < 1 {
		expected = 1
	}
	lost := expected - int64(s.packets)
	if lost < 0 {
		lost = 0
	}
	lossPercent := 100 * float64(lost) / float64(expected)

	return NetworkStats{
		Packets:     s.packets,
		Expected:    uint64(expected),
		Lost:        uint64(lost),
		LossPercent: lossPercent,
		JitterMs:    s.JitterMs(),
		FirstSeq:    s.baseSeq,
		HighestSeq:  s.highestSeq,
	}
}
