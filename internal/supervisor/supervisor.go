// Package supervisor implements the Supervisor (C11, spec.md §4.11): it
// spawns one worker goroutine per expanded endpoint, owns the shared
// shutdown signal and metrics-tick task, and finalizes the summary once
// all workers have joined. Grounded on the teacher's main.go worker
// fan-out (goroutine-per-subsystem with a shared context.Context and
// os/signal-driven shutdown), generalized from a handful of named
// subsystem goroutines to N identical per-endpoint workers.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/pagewatch/internal/endpoint"
	"github.com/cwsl/pagewatch/internal/metrics"
	"github.com/cwsl/pagewatch/internal/perr"
)

// cleanupDeadline: after shutdown is signaled, any worker still running
// past this deadline is aborted and logged as an error, per spec.md §5.
const cleanupDeadline = 2 * time.Second

// Options configures a supervised monitoring run.
type Options struct {
	Endpoints       []endpoint.Endpoint
	Timeout         time.Duration // 0 = run forever until signal
	MetricsInterval time.Duration
	JSONLPath       string
	SummaryPath     string
	Pattern         string // as printed in summary.json test_metadata
	Gauges          *metrics.PrometheusGauges
	Pushgateway     metrics.PushgatewayConfig // zero value disables pushing
}

// Worker is satisfied by the monitor package's per-endpoint receive loop;
// kept as an interface so the supervisor has no import on mcast/rtpflow.
type Worker interface {
	// Run blocks until ctx is canceled or a fatal error occurs.
	Run(ctx context.Context) error
	// Snapshot reports the worker's current metrics snapshot for the tick task.
	Snapshot() metrics.Snapshot
}

// WorkerFactory builds one Worker per endpoint, sharing the metrics sink.
type WorkerFactory func(ep endpoint.Endpoint, sink *metrics.Sink) (Worker, error)

// Supervisor owns the run's lifecycle.
type Supervisor struct {
	opts    Options
	sink    *metrics.Sink
	workers []Worker
}

// New constructs a Supervisor, opening the metrics sink, and builds one
// worker per endpoint via factory.
func New(opts Options, factory WorkerFactory) (*Supervisor, error) {
	sink, err := metrics.Open(opts.JSONLPath, opts.Gauges)
	if err != nil {
		return nil, fmt.Errorf("opening metrics sink: %w", err)
	}

	s := &Supervisor{opts: opts, sink: sink}
	for _, ep := range opts.Endpoints {
		w, err := factory(ep, sink)
		if err != nil {
			sink.Close()
			return nil, fmt.Errorf("building worker for %s: %w", ep.String(), err)
		}
		s.workers = append(s.workers, w)
	}
	return s, nil
}

// Run spawns all workers, the metrics-tick task, and the shutdown signal
// handler, then blocks until every worker has returned (or the cleanup
// deadline elapses), writing the final summary.json before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.opts.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer timeoutCancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	tickDone := make(chan struct{})
	go s.runMetricsTick(ctx, tickDone)

	pushStop := make(chan struct{})
	defer close(pushStop)
	if s.opts.Pushgateway.URL != "" {
		instanceID := uuid.NewString()
		go metrics.RunPushLoop(s.opts.Pushgateway, instanceID, pushStop)
	}

	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				s.sink.RecordError(metrics.ErrorEntry{
					Timestamp: metrics.NowTimestamp(),
					Kind:      "worker_failure",
					Message:   err.Error(),
				})
			}
		}(w)
	}

	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-ctx.Done():
		select {
		case <-joined:
		case <-time.After(cleanupDeadline):
			log.Printf("pagewatch: cleanup deadline exceeded, some workers still running")
			s.sink.RecordError(metrics.ErrorEntry{
				Timestamp: metrics.NowTimestamp(),
				Kind:      string(perr.ShutdownDeadlineMissed),
				Message:   "workers did not finish within the cleanup deadline",
			})
		}
	}
	<-tickDone

	end := time.Now()
	meta := metrics.TestMetadata{
		StartTime:          metrics.Timestamp(start),
		EndTime:            metrics.Timestamp(end),
		DurationSecs:       end.Sub(start).Seconds(),
		Pattern:            s.opts.Pattern,
		EndpointsMonitored: len(s.opts.Endpoints),
		MetricsIntervalMs:  int(s.opts.MetricsInterval / time.Millisecond),
		TimeoutSecs:        s.opts.Timeout.Seconds(),
	}
	if err := s.sink.WriteSummary(s.opts.SummaryPath, meta); err != nil {
		s.sink.Close()
		return fmt.Errorf("writing summary: %w", err)
	}
	return s.sink.Close()
}

func (s *Supervisor) runMetricsTick(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, w := range s.workers {
				s.sink.Submit(w.Snapshot())
			}
		}
	}
}
