// Package monitor wires the multicast receiver (C2), RTP parser (C3),
// and page session (C7) into one per-endpoint supervisor.Worker, per
// spec.md §5's "each endpoint has exactly one receiver task". Grounded
// on the teacher's per-subsystem receive loop in audio.go's
// receiveLoop, generalized to hand each datagram to a page.Session
// instead of a fixed SDR decoder chain.
package monitor

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/cwsl/pagewatch/internal/endpoint"
	"github.com/cwsl/pagewatch/internal/mcast"
	"github.com/cwsl/pagewatch/internal/metrics"
	"github.com/cwsl/pagewatch/internal/page"
	"github.com/cwsl/pagewatch/internal/perr"
	"github.com/cwsl/pagewatch/internal/rtpflow"
)

// Worker is the per-endpoint monitoring task: it owns a multicast
// receiver and the endpoint's page session, and satisfies
// supervisor.Worker. page.Session is documented as single-goroutine, so
// Snapshot never reaches into it from outside Run's goroutine: Run
// republishes a snapshot into an atomic pointer on its own metrics
// ticker, and Snapshot only ever loads that pointer.
type Worker struct {
	ep              endpoint.Endpoint
	iface           *net.Interface
	session         *page.Session
	sink            *metrics.Sink
	receiver        *mcast.Receiver
	metricsInterval time.Duration
	snapshot        atomic.Pointer[metrics.Snapshot]
}

// New builds a Worker for ep. iface may be nil to join on every
// non-loopback multicast-capable interface. metricsInterval is the
// supervisor's periodic metrics-tick cadence (spec.md §4.9).
func New(ep endpoint.Endpoint, iface *net.Interface, pageOpts page.Options, sink *metrics.Sink, metricsInterval time.Duration) *Worker {
	w := &Worker{
		ep:              ep,
		iface:           iface,
		session:         page.New(ep, pageOpts, sink),
		sink:            sink,
		metricsInterval: metricsInterval,
	}
	idle := metrics.NewSnapshot(ep.String(), false, nil, nil, metrics.NetworkSnapshot{}, metrics.AudioSnapshot{})
	w.snapshot.Store(&idle)
	return w
}

// Run opens the socket, then loops reading datagrams, parsing RTP, and
// feeding the page session, until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	recv, err := mcast.Open(w.ep, w.iface)
	if err != nil {
		return err
	}
	w.receiver = recv
	defer recv.Close()

	timerInterval := w.session.TimerInterval()
	ticker := time.NewTicker(timerInterval)
	defer ticker.Stop()

	metricsInterval := w.metricsInterval
	if metricsInterval <= 0 {
		metricsInterval = timerInterval
	}
	metricsTicker := time.NewTicker(metricsInterval)
	defer metricsTicker.Stop()

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	datagrams := make(chan mcast.Datagram)
	readErrs := make(chan error, 1)
	go func() {
		for {
			dg, err := recv.Read(readCtx)
			if err != nil {
				readErrs <- err
				return
			}
			select {
			case datagrams <- dg:
			case <-readCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return w.session.Shutdown(time.Now())
		case <-ticker.C:
			if err := w.session.CheckIdleGap(time.Now()); err != nil {
				return err
			}
		case <-metricsTicker.C:
			snap := w.session.Snapshot()
			w.snapshot.Store(&snap)
		case dg := <-datagrams:
			pkt, err := rtpflow.Parse(dg.Payload)
			if err != nil {
				w.sink.RecordError(metrics.ErrorEntry{
					Timestamp: metrics.NowTimestamp(),
					Endpoint:  strPtr(w.ep.String()),
					Kind:      string(perr.MalformedRtp),
					Message:   err.Error(),
				})
				continue
			}
			if err := w.session.HandlePacket(pkt.PayloadType, pkt.SSRC, pkt.SequenceNumber, pkt.Timestamp, pkt.Payload, dg.Arrival); err != nil {
				return err
			}
		case err := <-readErrs:
			if errors.Is(err, context.Canceled) {
				return w.session.Shutdown(time.Now())
			}
			return err
		}
	}
}

// Snapshot reports the most recent metrics snapshot Run published on its
// own metrics ticker. Safe to call from the supervisor's tick goroutine:
// it only ever loads an atomic pointer, never reaches into the
// single-goroutine page.Session directly.
func (w *Worker) Snapshot() metrics.Snapshot {
	return *w.snapshot.Load()
}

// Truncated reports how many oversized datagrams have been dropped.
func (w *Worker) Truncated() uint64 {
	if w.receiver == nil {
		return 0
	}
	return w.receiver.Truncated()
}

func strPtr(s string) *string { return &s }
