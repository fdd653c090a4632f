// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the gateway. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Admission metrics
	RejectedPayloads *prometheus.CounterVec

	// Recognition metrics
	Recognitions        *prometheus.CounterVec
	RecognitionDuration *prometheus.HistogramVec
	EngineFaults        *prometheus.CounterVec
	InFlight            prometheus.Gauge
	AudioBytes          prometheus.Histogram
}

// New creates a registry with process and Go collectors and registers all
// gateway metrics on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgw_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speechgw_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"route", "method"}),

		RejectedPayloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgw_rejected_requests_total",
			Help: "Requests rejected before dispatch, by error status",
		}, []string{"status"}),

		Recognitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgw_recognitions_total",
			Help: "Recognition calls by backend, language and outcome",
		}, []string{"backend", "language", "outcome"}),
		RecognitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speechgw_recognition_duration_seconds",
			Help:    "Time spent waiting on the recognition engine",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"backend"}),
		EngineFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechgw_engine_faults_total",
			Help: "Engine failures by backend and fault class",
		}, []string{"backend", "class"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "speechgw_recognitions_in_flight",
			Help: "Engine calls currently holding an admission slot",
		}),
		AudioBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechgw_audio_bytes",
			Help:    "Decoded audio size of accepted requests",
			Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10), // 16KiB to 8MiB
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) ObserveRejection(status string) {
	if m == nil {
		return
	}
	m.RejectedPayloads.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRecognition(backend, language, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Recognitions.WithLabelValues(backend, language, outcome).Inc()
	m.RecognitionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *Metrics) ObserveEngineFault(backend, class string) {
	if m == nil {
		return
	}
	m.EngineFaults.WithLabelValues(backend, class).Inc()
}

func (m *Metrics) ObserveAudioBytes(n int) {
	if m == nil {
		return
	}
	m.AudioBytes.Observe(float64(n))
}

// TrackInFlight increments the in-flight gauge and returns a func that
// decrements it.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
