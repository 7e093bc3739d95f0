// Package page implements the per-endpoint page-session state machine
// (C7, spec.md §4.7): Idle -> Active -> Closing, driven by packet
// arrivals and an idle-gap timer, bridging RTP/jitter/codec/analyzer
// into WAV recordings and PageSummary reports. Grounded on the teacher's
// decoder lifecycle in decoder_metrics.go (open-on-first-sample,
// finalize-on-gap accounting), adapted from a per-decoder-cycle model to
// a per-(endpoint,ssrc) page model.
package page

import (
	"fmt"
	"sync"
	"time"

	"github.com/cwsl/pagewatch/internal/analyzer"
	"github.com/cwsl/pagewatch/internal/codec"
	"github.com/cwsl/pagewatch/internal/endpoint"
	"github.com/cwsl/pagewatch/internal/jitter"
	"github.com/cwsl/pagewatch/internal/metrics"
	"github.com/cwsl/pagewatch/internal/perr"
	"github.com/cwsl/pagewatch/internal/wav"
)

// State is the page session's lifecycle state, per spec.md §4.7's diagram.
type State int

const (
	Idle State = iota
	Active
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	// DefaultGapThreshold is the inter-packet gap after which an active
	// page closes, per spec.md §4.7.
	DefaultGapThreshold = 5 * time.Second

	// DefaultMinPagePackets is the minimum packet count for a page to be
	// kept; shorter pages are discarded without reusing the page number.
	DefaultMinPagePackets = 3

	// maxTimerInterval caps the idle-gap poll timer at 250ms, per spec.md §4.7.
	maxTimerInterval = 250 * time.Millisecond
)

// counter is the process-wide, mutex-guarded monotonic page_number
// allocator, totally ordered across all endpoints per spec.md §4.7/§4.11.
var counter struct {
	mu   sync.Mutex
	next int
}

func nextPageNumber() int {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	counter.next++
	return counter.next
}

// Options configures a Session's recording and discard policy.
type Options struct {
	RecordingDir   string
	GapThreshold   time.Duration
	MinPagePackets int
	AnalyzerWindow int
	CodecHint      string // codec forced for every payload type, "" = use the PT mapping
}

func (o Options) timerInterval() time.Duration {
	d := o.GapThreshold / 4
	if d > maxTimerInterval || d <= 0 {
		return maxTimerInterval
	}
	return d
}

// Sink receives completed pages and mid-run errors; satisfied by
// *metrics.Sink in production and a fake in tests.
type Sink interface {
	RecordPage(metrics.PageSummary)
	RecordError(metrics.ErrorEntry)
}

// Session is the per-endpoint page-session state machine. It is not
// safe for concurrent use by more than one goroutine; the supervisor
// dedicates one goroutine per endpoint (spec.md §5).
type Session struct {
	ep   endpoint.Endpoint
	opts Options
	sink Sink

	state State

	ssrc        uint32
	pageNumber  int
	startWall   time.Time
	lastPacket  time.Time
	packetsThis uint64
	bytesThis   uint64

	stream   *jitter.Stream
	decoder  codec.Decoder
	analyzer *analyzer.Analyzer
	recorder *wav.Writer
}

// New creates an idle Session for ep.
func New(ep endpoint.Endpoint, opts Options, sink Sink) *Session {
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultGapThreshold
	}
	if opts.MinPagePackets <= 0 {
		opts.MinPagePackets = DefaultMinPagePackets
	}
	return &Session{ep: ep, opts: opts, sink: sink, state: Idle}
}

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// TimerInterval is the caller's polling interval for calling CheckIdleGap.
func (s *Session) TimerInterval() time.Duration { return s.opts.timerInterval() }

// HandlePacket processes one decoded RTP packet's arrival, driving the
// Idle->Active and SSRC-change transitions, per spec.md §4.7.
func (s *Session) HandlePacket(pt uint8, ssrc uint32, seq uint16, rtpTimestamp uint32, payload []byte, arrival time.Time) error {
	if s.state == Active && ssrc != s.ssrc {
		// SSRC change mid-stream closes the current page and opens a new one.
		if err := s.close(arrival); err != nil {
			return err
		}
	}
	if s.state != Active {
		if err := s.open(ssrc, pt, arrival); err != nil {
			return err
		}
	}

	arrivalSec := float64(arrival.UnixNano()) / 1e9
	if obs := s.stream.Observe(seq, rtpTimestamp, arrivalSec); obs == jitter.ObsRestart {
		// Large backward sequence jump on the same SSRC: treat as a stream
		// restart per spec.md §4.5 — close this page and begin a fresh
		// one, re-observing the packet as the new stream's first.
		if err := s.close(arrival); err != nil {
			return err
		}
		if err := s.open(ssrc, pt, arrival); err != nil {
			return err
		}
		s.stream.Observe(seq, rtpTimestamp, arrivalSec)
	}

	s.lastPacket = arrival
	s.packetsThis++
	s.bytesThis += uint64(len(payload))

	pcm, err := s.decoder.Decode(payload)
	if err != nil {
		s.sink.RecordError(metrics.ErrorEntry{
			Timestamp: metrics.NowTimestamp(),
			Endpoint:  strPtr(s.ep.String()),
			Kind:      string(perr.CodecBackendFailure),
			Message:   err.Error(),
		})
		return nil
	}
	s.analyzer.Process(pcm, 1)
	if s.recorder != nil {
		if err := s.recorder.WriteSamples(pcm); err != nil {
			return fmt.Errorf("writing recording: %w", err)
		}
	}
	return nil
}

// CheckIdleGap closes the page if now-lastPacket exceeds GapThreshold,
// per the timer-driven transition in spec.md §4.7.
func (s *Session) CheckIdleGap(now time.Time) error {
	if s.state != Active {
		return nil
	}
	if now.Sub(s.lastPacket) > s.opts.GapThreshold {
		return s.close(now)
	}
	return nil
}

// Shutdown forces Active->Closing on supervisor shutdown, per spec.md §4.11.
func (s *Session) Shutdown(now time.Time) error {
	if s.state != Active {
		s.state = Idle
		return nil
	}
	return s.close(now)
}

func (s *Session) open(ssrc uint32, pt uint8, now time.Time) error {
	dec, err := codec.DecoderFor(pt, s.opts.CodecHint)
	if err != nil {
		return err
	}
	s.decoder = dec
	s.stream = jitter.NewStream(dec.RTPClockHz())
	s.analyzer = analyzer.New(dec.SampleRate(), s.opts.AnalyzerWindow)
	s.ssrc = ssrc
	s.state = Active
	s.startWall = now
	s.lastPacket = now
	s.packetsThis = 0
	s.bytesThis = 0
	s.pageNumber = nextPageNumber()

	path := fmt.Sprintf("%s/page_%04d_%s.wav", s.opts.RecordingDir, s.pageNumber, s.ep.FilePrefix())
	rec, err := wav.Open(path, dec.SampleRate())
	if err != nil {
		return err
	}
	s.recorder = rec
	return nil
}

func (s *Session) close(now time.Time) error {
	s.state = Closing
	defer func() { s.state = Idle }()

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			return err
		}
	}

	if s.packetsThis < uint64(s.opts.MinPagePackets) {
		// Discarded: page_number is NOT reused, per spec.md §4.7.
		return nil
	}

	netStats := s.stream.Stats()
	snap := s.analyzer.Snapshot()
	duration := now.Sub(s.startWall).Seconds()

	var recordingFile *string
	if s.recorder != nil {
		f := fmt.Sprintf("page_%04d_%s.wav", s.pageNumber, s.ep.FilePrefix())
		recordingFile = &f
	}

	clippingPercent := 0.0
	if s.analyzer.SampleCount() > 0 {
		clippingPercent = 100 * float64(snap.Clipped) / float64(s.analyzer.SampleCount())
	}

	s.sink.RecordPage(metrics.PageSummary{
		PageNumber:    s.pageNumber,
		Endpoint:      s.ep.String(),
		StartTime:     metrics.Timestamp(s.startWall),
		EndTime:       metrics.Timestamp(now),
		DurationSecs:  duration,
		RecordingFile: recordingFile,
		Network: metrics.PageNetworkStats{
			PacketsReceived: netStats.Packets,
			BytesReceived:   s.bytesThis,
			PacketsLost:     netStats.Lost,
			LossPercent:     netStats.LossPercent,
			JitterMs:        s.stream.JitterMs(),
		},
		Audio: metrics.PageAudioStats{
			PeakRMSdB:        snap.PeakDB,
			AvgRMSdB:         snap.RMSdB,
			MaxPeakDB:        snap.MaxPeakDB,
			DominantFreqHz:   snap.DominantFreqHz,
			TotalGlitches:    snap.Glitches,
			TotalClipped:     snap.Clipped,
			ClippingPercent:  clippingPercent,
			AvgZeroCrossRate: snap.ZeroCrossRate,
		},
	})
	return nil
}

// Snapshot returns a metrics.Snapshot reflecting the session's current
// in-flight state, for the periodic metrics-tick task (spec.md §4.9).
func (s *Session) Snapshot() metrics.Snapshot {
	active := s.state == Active
	var pageNumber *int
	var duration *float64
	net := metrics.NetworkSnapshot{}
	audio := metrics.AudioSnapshot{}

	if active {
		pn := s.pageNumber
		pageNumber = &pn
		d := time.Since(s.startWall).Seconds()
		duration = &d
		stats := s.stream.Stats()
		net = metrics.NetworkSnapshot{
			Packets:     stats.Packets,
			Bytes:       s.bytesThis,
			LossPercent: stats.LossPercent,
			JitterMs:    s.stream.JitterMs(),
		}
		snap := s.analyzer.Snapshot()
		audio = metrics.AudioSnapshot{
			RMSdB:          snap.RMSdB,
			PeakDB:         snap.MaxPeakDB,
			DominantFreqHz: snap.DominantFreqHz,
			Glitches:       snap.Glitches,
			Clipped:        snap.Clipped,
		}
	}

	return metrics.NewSnapshot(s.ep.String(), active, pageNumber, duration, net, audio)
}

func strPtr(s string) *string { return &s }
