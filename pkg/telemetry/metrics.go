package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

// Metrics provides Prometheus metrics for the hook orchestrator.
type Metrics struct {
	config MetricsConfig

	// Operation metrics
	operationsStarted   *prometheus.CounterVec
	operationsCompleted *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec

	// Phase metrics
	phaseDuration *prometheus.HistogramVec

	// Hook metrics
	hooksExecuted *prometheus.CounterVec
	hookDuration  *prometheus.HistogramVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	// System metrics
	activeOperations prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. A disabled configuration
// returns a no-op instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		operationsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_started_total",
				Help:      "Total number of release operations started",
			},
			[]string{"operation"},
		),
		operationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_completed_total",
				Help:      "Total number of release operations completed",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of release operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of hook phase execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase", "status"},
		),
		hooksExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hooks_executed_total",
				Help:      "Total number of hooks executed",
			},
			[]string{"phase", "outcome"},
		),
		hookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hook_duration_seconds",
				Help:      "Duration from hook submission to terminal state in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase", "outcome"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by code",
			},
			[]string{"code"},
		),
		activeOperations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_operations",
				Help:      "Number of operations currently in flight",
			},
		),
	}

	registry.MustRegister(
		m.operationsStarted,
		m.operationsCompleted,
		m.operationDuration,
		m.phaseDuration,
		m.hooksExecuted,
		m.hookDuration,
		m.errorsByCode,
		m.activeOperations,
	)

	return m
}

// Observe folds a lifecycle event into the metrics. It is intended to be
// registered as an event bus subscriber.
func (m *Metrics) Observe(envelope Envelope) {
	if m.registry == nil {
		return
	}

	event := envelope.Event
	seconds := event.Elapsed.Seconds()

	switch event.Type {
	case lifecycle.EventTypeOperationStarted:
		m.operationsStarted.WithLabelValues(event.Operation.String()).Inc()
		m.activeOperations.Inc()

	case lifecycle.EventTypeOperationCompleted:
		m.operationsCompleted.WithLabelValues(event.Operation.String(), "succeeded").Inc()
		m.operationDuration.WithLabelValues(event.Operation.String(), "succeeded").Observe(seconds)
		m.activeOperations.Dec()

	case lifecycle.EventTypeOperationFailed:
		m.operationsCompleted.WithLabelValues(event.Operation.String(), "failed").Inc()
		m.operationDuration.WithLabelValues(event.Operation.String(), "failed").Observe(seconds)
		m.activeOperations.Dec()

	case lifecycle.EventTypePhaseCompleted:
		m.phaseDuration.WithLabelValues(event.Phase.String(), "succeeded").Observe(seconds)

	case lifecycle.EventTypePhaseFailed:
		m.phaseDuration.WithLabelValues(event.Phase.String(), "failed").Observe(seconds)

	case lifecycle.EventTypeHookReady:
		m.hooksExecuted.WithLabelValues(event.Phase.String(), "ready").Inc()
		m.hookDuration.WithLabelValues(event.Phase.String(), "ready").Observe(seconds)

	case lifecycle.EventTypeHookFailed:
		m.hooksExecuted.WithLabelValues(event.Phase.String(), "failed").Inc()
		m.hookDuration.WithLabelValues(event.Phase.String(), "failed").Observe(seconds)
	}
}

// RecordError counts an error by its lifecycle error code.
func (m *Metrics) RecordError(code string) {
	if m.registry == nil || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// Handler returns the Prometheus exposition handler, or nil when metrics
// are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics HTTP server on the configured listen address.
// It returns immediately; the server runs until the process exits.
func (m *Metrics) Serve() {
	if m.registry == nil || m.config.Listen == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = server.ListenAndServe()
	}()
}
