// Package telemetry provides observability with Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for PromptRelay
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Upstream transport metrics
	TransportAttempts *prometheus.CounterVec
	FailuresTotal     *prometheus.CounterVec

	// Fallback metrics
	FallbacksTotal *prometheus.CounterVec

	// Connectivity probe metrics
	ProbeLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptrelay_requests_total",
				Help: "Total number of assistance requests",
			},
			[]string{"kind", "skill", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptrelay_request_duration_seconds",
				Help:    "End-to-end request duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),

		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptrelay_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),

		TransportAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptrelay_transport_attempts_total",
				Help: "Upstream delivery attempts per transport",
			},
			[]string{"transport", "outcome"},
		),

		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptrelay_failures_total",
				Help: "Upstream failures by classification",
			},
			[]string{"classification"},
		),

		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptrelay_fallbacks_total",
				Help: "Locally generated fallback responses",
			},
			[]string{"kind", "classification"},
		),

		ProbeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptrelay_probe_latency_seconds",
				Help:    "Connectivity probe latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"target"},
		),
	}
}

// Handler returns an HTTP handler for Prometheus metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// RequestRecorder helps record metrics for a request
type RequestRecorder struct {
	metrics   *Metrics
	kind      string
	skill     string
	startTime time.Time
}

// NewRequestRecorder creates a new request recorder
func (m *Metrics) NewRequestRecorder(kind, skill string) *RequestRecorder {
	m.RequestsInFlight.Inc()
	return &RequestRecorder{
		metrics:   m,
		kind:      kind,
		skill:     skill,
		startTime: time.Now(),
	}
}

// RecordSuccess records a request answered with upstream text
func (r *RequestRecorder) RecordSuccess() {
	r.finish("success")
}

// RecordFallback records a request answered with a local fallback
func (r *RequestRecorder) RecordFallback(classification string) {
	r.finish("fallback")
	r.metrics.FallbacksTotal.WithLabelValues(r.kind, classification).Inc()
}

// RecordError records a failed request
func (r *RequestRecorder) RecordError(classification string) {
	r.finish("error")
	if classification != "" {
		r.metrics.FailuresTotal.WithLabelValues(classification).Inc()
	}
}

func (r *RequestRecorder) finish(status string) {
	duration := time.Since(r.startTime).Seconds()
	r.metrics.RequestsInFlight.Dec()
	r.metrics.RequestsTotal.WithLabelValues(r.kind, r.skill, status).Inc()
	r.metrics.RequestDuration.WithLabelValues(r.kind).Observe(duration)
}

// RecordTransportAttempt records one delivery attempt outcome
func (m *Metrics) RecordTransportAttempt(transport, outcome string) {
	m.TransportAttempts.WithLabelValues(transport, outcome).Inc()
}

// RecordProbe records a connectivity probe observation
func (m *Metrics) RecordProbe(target string, d time.Duration) {
	m.ProbeLatency.WithLabelValues(target).Observe(d.Seconds())
}
