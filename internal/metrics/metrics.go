// Package metrics provides Prometheus collectors and the metrics HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application collectors. A nil *Metrics is safe to use;
// every method is a no-op on it, so tests can skip wiring.
type Metrics struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	storeOpTime   *prometheus.HistogramVec
	registrations *prometheus.CounterVec
	uploads       prometheus.Counter
	listedVideos  prometheus.Histogram
}

// New creates and registers the application collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classreel_store_operations_total",
			Help: "Blob store operations by type and outcome.",
		}, []string{"op", "outcome"}),
		storeOpTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classreel_store_operation_seconds",
			Help:    "Blob store operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classreel_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classreel_video_uploads_total",
			Help: "Completed video uploads.",
		}),
		listedVideos: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classreel_videos_listed",
			Help:    "Number of videos returned per listing.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}

	m.registry.MustRegister(
		m.storeOps,
		m.storeOpTime,
		m.registrations,
		m.uploads,
		m.listedVideos,
	)

	return m
}

// Registry exposes the underlying registry for the metrics server.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordStoreOp counts one blob store call.
func (m *Metrics) RecordStoreOp(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.storeOps.WithLabelValues(op, outcome).Inc()
	m.storeOpTime.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordRegistration counts one registration attempt.
// outcome is one of: ok, duplicate_email, invalid_license, limit_reached, error.
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// RecordUpload counts one completed video upload.
func (m *Metrics) RecordUpload() {
	if m == nil {
		return
	}
	m.uploads.Inc()
}

// RecordListing observes the size of one listing result.
func (m *Metrics) RecordListing(count int) {
	if m == nil {
		return
	}
	m.listedVideos.Observe(float64(count))
}
