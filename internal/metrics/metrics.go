// Package metrics exposes the live loop and detection client counters to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Detection request outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Live loop counters
	CyclesCompleted atomic.Uint64
	CyclesFailed    atomic.Uint64
	TicksSkipped    atomic.Uint64
	LoopRunning     atomic.Uint64 // 0 = stopped, 1 = running

	// Upload path
	UploadsProcessed atomic.Uint64

	// Backend request latency
	requests       atomic.Uint64
	totalLatencyMs atomic.Uint64

	// Websocket subscribers
	StreamClients atomic.Int64

	detectDuration *prometheus.HistogramVec
	detections     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		detectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "detectx_detect_request_duration_seconds",
			Help:    "Latency of detection requests to the backend",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detectx_detections_total",
			Help: "Objects detected by label",
		}, []string{"label"}),
	}

	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.detectDuration, m.detections)

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "detectx_cycles_completed_total",
			Help: "Live detection cycles that produced a result",
		},
		func() float64 { return float64(m.CyclesCompleted.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "detectx_cycles_failed_total",
			Help: "Live detection cycles that failed",
		},
		func() float64 { return float64(m.CyclesFailed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "detectx_ticks_skipped_total",
			Help: "Ticks skipped because a request was still in flight",
		},
		func() float64 { return float64(m.TicksSkipped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "detectx_loop_running",
			Help: "Live loop running (0=stopped, 1=running)",
		},
		func() float64 { return float64(m.LoopRunning.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "detectx_uploads_processed_total",
			Help: "Uploaded images sent for detection",
		},
		func() float64 { return float64(m.UploadsProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "detectx_stream_clients",
			Help: "Connected live state stream clients",
		},
		func() float64 { return float64(m.StreamClients.Load()) },
	))
}

// ObserveDetect records one backend detection request
func (m *Metrics) ObserveDetect(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.detectDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.requests.Add(1)
	m.totalLatencyMs.Add(uint64(d.Milliseconds()))
}

// CountDetections adds one to the per-label counter for each detection label
func (m *Metrics) CountDetections(labels []string) {
	if m == nil {
		return
	}
	for _, label := range labels {
		m.detections.WithLabelValues(label).Inc()
	}
}

// CycleCompleted records a successful live cycle
func (m *Metrics) CycleCompleted() {
	if m != nil {
		m.CyclesCompleted.Add(1)
	}
}

// CycleFailed records a failed live cycle
func (m *Metrics) CycleFailed() {
	if m != nil {
		m.CyclesFailed.Add(1)
	}
}

// TickSkipped records a tick dropped by the in-flight guard
func (m *Metrics) TickSkipped() {
	if m != nil {
		m.TicksSkipped.Add(1)
	}
}

// SetRunning updates the loop running gauge
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.LoopRunning.Store(1)
	} else {
		m.LoopRunning.Store(0)
	}
}

// UploadProcessed records one upload-and-detect request
func (m *Metrics) UploadProcessed() {
	if m != nil {
		m.UploadsProcessed.Add(1)
	}
}

// StreamOpened records a new live state stream client
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.StreamClients.Add(1)
	}
}

// StreamClosed records a disconnected live state stream client
func (m *Metrics) StreamClosed() {
	if m != nil {
		m.StreamClients.Add(-1)
	}
}

// AvgResponseTimeMs returns the mean backend request latency in milliseconds
func (m *Metrics) AvgResponseTimeMs() float64 {
	if m == nil {
		return 0
	}
	n := m.requests.Load()
	if n == 0 {
		return 0
	}
	return float64(m.totalLatencyMs.Load()) / float64(n)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
