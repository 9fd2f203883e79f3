// Package metrics collects Prometheus metrics and OpenTelemetry spans for
// the receipt server.
//
// A nil *Metrics is valid and records nothing, so sessions and tests can
// run without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/billform/pkg/reconcile"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric name (default: "billform").
	Namespace string

	// Buckets are the histogram buckets for flush and request durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors. When nil a fresh registry is
	// created with the Go and process collectors.
	Registry *prometheus.Registry

	// TracerName names the OpenTelemetry tracer (default: "billform").
	TracerName string
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// Metrics holds the collectors and the tracer.
type Metrics struct {
	registry *prometheus.Registry
	tracer   trace.Tracer

	reconcileOps   *prometheus.CounterVec
	flushes        prometheus.Counter
	flushDuration  prometheus.Histogram
	flushErrors    prometheus.Counter
	patchesSent    prometheus.Counter
	activeSessions prometheus.Gauge
	eventsTotal    *prometheus.CounterVec
	localeReloads  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors and resolves the tracer from the global
// OpenTelemetry provider.
func New(opts ...Option) *Metrics {
	config := Config{
		Namespace:  "billform",
		Buckets:    prometheus.DefBuckets,
		TracerName: "billform",
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
		config.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(config.Registry)
	ns := config.Namespace
	return &Metrics{
		registry: config.Registry,
		tracer:   otel.Tracer(config.TracerName),

		reconcileOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconcile_ops_total",
			Help:      "Keyed list operations by kind",
		}, []string{"op"}),

		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "flushes_total",
			Help:      "Scheduler flushes",
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "flush_duration_seconds",
			Help:      "Scheduler flush duration in seconds",
			Buckets:   config.Buckets,
		}),

		flushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "flush_errors_total",
			Help:      "Flushes that failed and forced a remount",
		}),

		patchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "patches_sent_total",
			Help:      "Patches sent to clients",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_sessions",
			Help:      "Connected live sessions",
		}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_total",
			Help:      "Client events by type and outcome",
		}, []string{"type", "status"}),

		localeReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "locale_reloads_total",
			Help:      "Locale directory reloads by outcome",
		}, []string{"status"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code",
		}, []string{"route", "code"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFlush records one scheduler flush.
func (m *Metrics) ObserveFlush(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.flushes.Inc()
	m.flushDuration.Observe(d.Seconds())
	if err != nil {
		m.flushErrors.Inc()
	}
}

// RecordReconcile adds the operations of s.
func (m *Metrics) RecordReconcile(s reconcile.Stats) {
	if m == nil {
		return
	}
	for op, n := range map[string]int{
		"create":  s.Created,
		"patch":   s.Patched,
		"insert":  s.Inserted,
		"move":    s.Moved,
		"destroy": s.Destroyed,
	} {
		if n > 0 {
			m.reconcileOps.WithLabelValues(op).Add(float64(n))
		}
	}
}

// RecordPatches records patches written to a client.
func (m *Metrics) RecordPatches(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.patchesSent.Add(float64(n))
}

// RecordEvent records a client event. Status is "ok", "dropped" or "error".
func (m *Metrics) RecordEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, status).Inc()
}

// RecordLocaleReload records a reload of the locale directory.
func (m *Metrics) RecordLocaleReload(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.localeReloads.WithLabelValues(status).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) observeRequest(route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
