// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the service's prometheus metrics. All
// record methods are nil-safe so call sites never need a guard.
type Collector struct {
	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Engagement
	iterationsTotal     *prometheus.CounterVec
	iterationDuration   *prometheus.HistogramVec
	personaCallsTotal   *prometheus.CounterVec
	personaCallDuration *prometheus.HistogramVec

	// Knowledge gateway
	ragQueriesTotal *prometheus.CounterVec

	// Writeback queue
	writebacksTotal *prometheus.CounterVec
	writebackDepth  prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers all collectors under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.iterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Total number of engagement iterations",
		},
		[]string{"mode", "status"},
	)

	c.iterationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Engagement iteration duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	c.personaCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_calls_total",
			Help:      "Total number of persona completion calls",
		},
		[]string{"outcome"}, // ok, sentinel
	)

	c.personaCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persona_call_duration_seconds",
			Help:      "Persona completion call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	c.ragQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_queries_total",
			Help:      "Total number of knowledge retrieval queries",
		},
		[]string{"outcome"}, // ok, degraded
	)

	c.writebacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writebacks_total",
			Help:      "Total number of interaction writebacks",
		},
		[]string{"outcome"}, // ok, failed, dropped
	)

	c.writebackDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "writeback_queue_depth",
			Help:      "Number of writebacks waiting in the queue",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIteration records one completed engagement iteration.
func (c *Collector) RecordIteration(mode, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.iterationsTotal.WithLabelValues(mode, status).Inc()
	c.iterationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordPersonaCall records one persona completion call.
func (c *Collector) RecordPersonaCall(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.personaCallsTotal.WithLabelValues(outcome).Inc()
	c.personaCallDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRAGQuery records one knowledge retrieval query.
func (c *Collector) RecordRAGQuery(outcome string) {
	if c == nil {
		return
	}
	c.ragQueriesTotal.WithLabelValues(outcome).Inc()
}

// RecordWriteback records one interaction writeback outcome.
func (c *Collector) RecordWriteback(outcome string) {
	if c == nil {
		return
	}
	c.writebacksTotal.WithLabelValues(outcome).Inc()
}

// SetWritebackDepth reports the current writeback queue depth.
func (c *Collector) SetWritebackDepth(depth int) {
	if c == nil {
		return
	}
	c.writebackDepth.Set(float64(depth))
}

func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
