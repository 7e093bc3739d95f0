package metrics

import (
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PrometheusGauges holds the live per-endpoint gauges pagewatch pushes to
// an optional Pushgateway, grounded on the teacher's prometheus.go (same
// promauto.NewGaugeVec + push.New/Grouping/Push shape, restyled around
// per-endpoint paging labels instead of per-band SDR labels).
type PrometheusGauges struct {
	packets     *prometheus.GaugeVec
	lossPercent *prometheus.GaugeVec
	jitterMs    *prometheus.GaugeVec
	pageActive  *prometheus.GaugeVec
	rmsDB       *prometheus.GaugeVec
	dominantHz  *prometheus.GaugeVec
	lastUpdate  *prometheus.GaugeVec
}

// NewPrometheusGauges registers the gauge vectors against the default
// registry via promauto, as the teacher does.
func NewPrometheusGauges() *PrometheusGauges {
	return &PrometheusGauges{
		packets: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_packets_total",
			Help: "RTP packets received in the current page on this endpoint (0 when idle).",
		}, []string{"endpoint"}),
		lossPercent: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_loss_percent",
			Help: "Estimated packet loss percentage over the current page.",
		}, []string{"endpoint"}),
		jitterMs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_jitter_ms",
			Help: "RFC 3550 interarrival jitter estimate in milliseconds.",
		}, []string{"endpoint"}),
		pageActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_page_active",
			Help: "1 if a page is currently active on this endpoint.",
		}, []string{"endpoint"}),
		rmsDB: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_rms_db",
			Help: "Average RMS level of the current page in dBFS.",
		}, []string{"endpoint"}),
		dominantHz: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_dominant_freq_hz",
			Help: "Most-voted dominant frequency of the current page, in Hz.",
		}, []string{"endpoint"}),
		lastUpdate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_last_update_unix",
			Help: "Unix timestamp of the last metrics snapshot.",
		}, []string{"endpoint"}),
	}
}

// Observe records one Snapshot into the gauges.
func (g *PrometheusGauges) Observe(s Snapshot) {
	if g == nil {
		return
	}
	g.packets.WithLabelValues(s.Endpoint).Set(float64(s.Network.Packets))
	g.lossPercent.WithLabelValues(s.Endpoint).Set(s.Network.LossPercent)
	g.jitterMs.WithLabelValues(s.Endpoint).Set(s.Network.JitterMs)
	active := 0.0
	if s.PageActive {
		active = 1.0
	}
	g.pageActive.WithLabelValues(s.Endpoint).Set(active)
	g.rmsDB.WithLabelValues(s.Endpoint).Set(s.Audio.RMSdB)
	g.dominantHz.WithLabelValues(s.Endpoint).Set(s.Audio.DominantFreqHz)
	g.lastUpdate.WithLabelValues(s.Endpoint).Set(float64(time.Time(s.Timestamp).Unix()))
}

// PushgatewayConfig configures the optional push loop. A zero-value URL
// disables pushing entirely (pushgateway integration is optional per
// spec.md's metrics section).
type PushgatewayConfig struct {
	URL      string
	Job      string
	Interval time.Duration
}

// RunPushLoop pushes prometheus.DefaultGatherer to cfg.URL on cfg.Interval
// until stop is closed, matching the teacher's pushToGateway's
// push.New(...).Gatherer(...).Grouping(...).Push() chain.
func RunPushLoop(cfg PushgatewayConfig, instance string, stop <-chan struct{}) {
	if cfg.URL == "" {
		return
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pusher := push.New(cfg.URL, cfg.Job).
				Gatherer(prometheus.DefaultGatherer).
				Grouping("instance", instance)
			if err := pusher.Push(); err != nil {
				log.Printf("pagewatch: pushgateway push failed: %v", fmt.Errorf("push: %w", err))
			}
		}
	}
}
