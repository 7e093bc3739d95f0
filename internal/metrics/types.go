// Package metrics is the periodic-snapshot and final-summary sink (C9,
// spec.md §4.9/§6): append-only metrics.jsonl, an atomically-written
// summary.json at shutdown, and a bounded errors ring. Grounded on the
// teacher's decoder_metrics_log.go (JSON Lines writer keyed per
// subject-per-tick) and prometheus.go (supplementary live gauges),
// restyled around paging "endpoint" subjects instead of SDR "mode/band".
package metrics

import (
	"math"
	"time"
)

// Timestamp marshals as ISO 8601 UTC with millisecond precision ("Z"),
// per spec.md §6.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	s := time.Time(t).UTC().Format("2006-01-02T15:04:05.000Z")
	return []byte(`"` + s + `"`), nil
}

func NowTimestamp() Timestamp { return Timestamp(time.Now()) }

// finite replaces NaN with 0.0, per spec.md §6 ("Floats: finite; NaN
// replaced with 0.0 in JSON").
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NetworkSnapshot is the "network" object in one metrics.jsonl line.
type NetworkSnapshot struct {
	Packets     uint64  `json:"packets"`
	Bytes       uint64  `json:"bytes"`
	LossPercent float64 `json:"loss_percent"`
	JitterMs    float64 `json:"jitter_ms"`
}

// AudioSnapshot is the "audio" object in one metrics.jsonl line.
type AudioSnapshot struct {
	RMSdB          float64 `json:"rms_db"`
	PeakDB         float64 `json:"peak_db"`
	DominantFreqHz float64 `json:"dominant_freq_hz"`
	Glitches       uint64  `json:"glitches"`
	Clipped        uint64  `json:"clipped"`
}

// Snapshot is one line of metrics.jsonl, per spec.md §6.
type Snapshot struct {
	Timestamp     Timestamp       `json:"timestamp"`
	Endpoint      string          `json:"endpoint"`
	PageActive    bool            `json:"page_active"`
	PageNumber    *int            `json:"page_number"`
	DurationSecs  *float64        `json:"duration_secs"`
	Network       NetworkSnapshot `json:"network"`
	Audio         AudioSnapshot   `json:"audio"`
}

// NewSnapshot builds a Snapshot, sanitizing floats to finite values.
func NewSnapshot(endpoint string, active bool, pageNumber *int, durationSecs *float64, net NetworkSnapshot, audio AudioSnapshot) Snapshot {
	net.LossPercent = finite(net.LossPercent)
	net.JitterMs = finite(net.JitterMs)
	audio.RMSdB = finite(audio.RMSdB)
	audio.PeakDB = finite(audio.PeakDB)
	audio.DominantFreqHz = finite(audio.DominantFreqHz)
	if durationSecs != nil {
		d := finite(*durationSecs)
		durationSecs = &d
	}
	return Snapshot{
		Timestamp:    NowTimestamp(),
		Endpoint:     endpoint,
		PageActive:   active,
		PageNumber:   pageNumber,
		DurationSecs: durationSecs,
		Network:      net,
		Audio:        audio,
	}
}

// PageNetworkStats is the "network" object inside a PageSummary.
type PageNetworkStats struct {
	PacketsReceived uint64  `json:"packets_received"`
	BytesReceived   uint64  `json:"bytes_received"`
	PacketsLost     uint64  `json:"packets_lost"`
	LossPercent     float64 `json:"loss_percent"`
	JitterMs        float64 `json:"jitter_ms"`
}

// PageAudioStats is the "audio" object inside a PageSummary.
type PageAudioStats struct {
	PeakRMSdB        float64 `json:"peak_rms_db"`
	AvgRMSdB         float64 `json:"avg_rms_db"`
	MaxPeakDB        float64 `json:"max_peak_db"`
	DominantFreqHz   float64 `json:"dominant_freq_hz"`
	TotalGlitches    uint64  `json:"total_glitches"`
	TotalClipped     uint64  `json:"total_clipped"`
	ClippingPercent  float64 `json:"clipping_percent"`
	AvgZeroCrossRate float64 `json:"avg_zero_crossing_rate"`
}

// PageSummary is one entry of summary.json's "pages" array, per spec.md §6.
type PageSummary struct {
	PageNumber    int              `json:"page_number"`
	Endpoint      string           `json:"endpoint"`
	StartTime     Timestamp        `json:"start_time"`
	EndTime       Timestamp        `json:"end_time"`
	DurationSecs  float64          `json:"duration_secs"`
	RecordingFile *string          `json:"recording_file"`
	Network       PageNetworkStats `json:"network"`
	Audio         PageAudioStats   `json:"audio"`
}

// ErrorEntry is one entry of summary.json's "errors" array.
type ErrorEntry struct {
	Timestamp Timestamp `json:"timestamp"`
	Endpoint  *string   `json:"endpoint,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// EndpointTotals is one value in summary.json's "endpoint_totals" map.
type EndpointTotals struct {
	PagesDetected     int     `json:"pages_detected"`
	TotalDurationSecs float64 `json:"total_duration_secs"`
	TotalPackets      uint64  `json:"total_packets"`
	TotalBytes        uint64  `json:"total_bytes"`
}

// TestMetadata is summary.json's "test_metadata" object.
type TestMetadata struct {
	StartTime          Timestamp `json:"start_time"`
	EndTime            Timestamp `json:"end_time"`
	DurationSecs       float64   `json:"duration_secs"`
	Pattern            string    `json:"pattern"`
	EndpointsMonitored int       `json:"endpoints_monitored"`
	MetricsIntervalMs  int       `json:"metrics_interval_ms"`
	TimeoutSecs        float64   `json:"timeout_secs"`
}

// Summary is the full summary.json document, per spec.md §6.
type Summary struct {
	TestMetadata   TestMetadata              `json:"test_metadata"`
	Pages          []PageSummary             `json:"pages"`
	EndpointTotals map[string]EndpointTotals `json:"endpoint_totals"`
	Errors         []ErrorEntry              `json:"errors"`
}
