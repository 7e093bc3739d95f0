package metrics

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// snapshotQueueCapacity bounds the single-writer actor's inbox. Per
	// spec.md's metrics sink design, a slow disk must never block the
	// monitoring hot path; once full, the oldest queued snapshot is
	// dropped and a counter incremented.
	snapshotQueueCapacity = 1024

	// errorRingCapacity bounds the in-memory errors slice surfaced in
	// summary.json, keeping only the most recent entries.
	errorRingCapacity = 1024
)

// Sink is the single-writer metrics actor: it owns metrics.jsonl, the
// live Prometheus gauges, and the accumulators that feed the final
// summary.json. Grounded on the teacher's MetricsLogger (decoder_metrics_log.go):
// one append-only JSONL file, opened once and kept open for the run.
type Sink struct {
	jsonlPath string
	file      *os.File
	enc       *json.Encoder

	gauges *PrometheusGauges

	queue chan Snapshot
	done  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	dropped  uint64
	pages    []PageSummary
	errors   []ErrorEntry
	endpoint map[string]EndpointTotals
}

// Open creates (or truncates) jsonlPath and starts the writer goroutine.
// gauges may be nil if Prometheus integration is disabled.
func Open(jsonlPath string, gauges *PrometheusGauges) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(jsonlPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating metrics dir: %w", err)
	}
	f, err := os.OpenFile(jsonlPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", jsonlPath, err)
	}
	s := &Sink{
		jsonlPath: jsonlPath,
		file:      f,
		enc:       json.NewEncoder(f),
		gauges:    gauges,
		queue:     make(chan Snapshot, snapshotQueueCapacity),
		done:      make(chan struct{}),
		endpoint:  make(map[string]EndpointTotals),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *Sink) run() {
	defer s.wg.Done()
	for {
		select {
		case snap, ok := <-s.queue:
			if !ok {
				return
			}
			if err := s.enc.Encode(snap); err != nil {
				log.Printf("pagewatch: metrics write failed: %v", err)
			}
			if s.gauges != nil {
				s.gauges.Observe(snap)
			}
		case <-s.done:
			// Drain whatever is already queued before exiting, so a
			// graceful shutdown doesn't lose the final tick.
			for {
				select {
				case snap, ok := <-s.queue:
					if !ok {
						return
					}
					if err := s.enc.Encode(snap); err != nil {
						log.Printf("pagewatch: metrics write failed: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a snapshot for the writer goroutine. If the queue is
// full, the oldest entry is dropped to make room (drop-oldest policy)
// and the drop counter is incremented.
func (s *Sink) Submit(snap Snapshot) {
	select {
	case s.queue <- snap:
		return
	default:
	}
	select {
	case <-s.queue:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	default:
	}
	select {
	case s.queue <- snap:
	default:
	}
}

// Dropped reports how many snapshots were dropped for queue overflow.
func (s *Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// RecordPage appends a completed page's summary and rolls it into the
// endpoint totals used by summary.json.
func (s *Sink) RecordPage(p PageSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
	t := s.endpoint[p.Endpoint]
	t.PagesDetected++
	t.TotalDurationSecs += p.DurationSecs
	t.TotalPackets += p.Network.PacketsReceived
	t.TotalBytes += p.Network.BytesReceived
	s.endpoint[p.Endpoint] = t
}

// RecordError appends an error entry, keeping only the most recent
// errorRingCapacity entries.
func (s *Sink) RecordError(e ErrorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
	if len(s.errors) > errorRingCapacity {
		s.errors = s.errors[len(s.errors)-errorRingCapacity:]
	}
}

// WriteSummary atomically writes summary.json: marshal to a temp file in
// the same directory, then rename over the final path, so a reader never
// observes a partially written file.
func (s *Sink) WriteSummary(path string, meta TestMetadata) error {
	s.mu.Lock()
	summary := Summary{
		TestMetadata:   meta,
		Pages:          append([]PageSummary(nil), s.pages...),
		EndpointTotals: make(map[string]EndpointTotals, len(s.endpoint)),
		Errors:         append([]ErrorEntry(nil), s.errors...),
	}
	for k, v := range s.endpoint {
		summary.EndpointTotals[k] = v
	}
	s.mu.Unlock()

	// Pages close in whatever order their endpoints' idle gaps or
	// shutdown land, not necessarily start order, per spec.md §8
	// invariant 4 ("pages in order of start_time").
	sort.Slice(summary.Pages, func(i, j int) bool {
		return time.Time(summary.Pages[i].StartTime).Before(time.Time(summary.Pages[j].StartTime))
	})

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// Close stops the writer goroutine and closes metrics.jsonl.
func (s *Sink) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.file.Close()
}
