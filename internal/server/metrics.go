package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry          *prometheus.Registry
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	replaysTotal      *prometheus.CounterVec
	readsTotal        *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_will_operations_total",
		Help: "Lifecycle operations by outcome",
	}, []string{"operation", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hera_will_operation_duration_seconds",
		Help:    "Time from request to durable inclusion",
		Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 15, 30, 60, 120},
	}, []string{"operation"})

	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_idempotent_replays_total",
		Help: "Write requests answered from the idempotency store",
	}, []string{"operation"})

	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_will_reads_total",
		Help: "Projection reads by outcome",
	}, []string{"view", "outcome"})

	r := prometheus.NewRegistry()
	r.MustRegister(ops, duration, replays, reads)

	return &metricsRegistry{
		registry:          r,
		operationsTotal:   ops,
		operationDuration: duration,
		replaysTotal:      replays,
		readsTotal:        reads,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) observeOperation(op, outcome string, since time.Time) {
	m.operationsTotal.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(since).Seconds())
}

func (m *metricsRegistry) incReplay(op string) {
	m.replaysTotal.WithLabelValues(op).Inc()
}

func (m *metricsRegistry) incRead(view, outcome string) {
	m.readsTotal.WithLabelValues(view, outcome).Inc()
}
