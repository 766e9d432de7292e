package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsSent *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	lastFetch     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		snapshotsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urbanpull_snapshots_sent_total",
				Help: "Total number of indicator snapshots sent to backend",
			},
			[]string{"backend", "indicator"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urbanpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "urbanpull_fetch_duration_seconds",
				Help:    "Time to fetch one indicator descriptor",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"indicator"},
		),
		lastFetch: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "urbanpull_last_fetch_timestamp_seconds",
				Help: "Unix time of the last successful fetch for an indicator",
			},
			[]string{"indicator"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "urbanpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSnapshotSent records a snapshot handed to a backend.
func (r *Recorder) RecordSnapshotSent(backend, indicator string) {
	r.snapshotsSent.WithLabelValues(backend, indicator).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFetch records a successful fetch and its duration.
func (r *Recorder) RecordFetch(indicator string, seconds float64) {
	r.fetchDuration.WithLabelValues(indicator).Observe(seconds)
	r.lastFetch.WithLabelValues(indicator).Set(float64(time.Now().Unix()))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
