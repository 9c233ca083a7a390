package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lampctl/lampctl/pkg/engine"
)

// Metrics collects Prometheus counters for runs, operations and rollbacks.
// lampctl is a one-shot CLI, so exposition is optional: counters can be
// scraped when Serve is used, and they always feed the final run log line.
type Metrics struct {
	runsByState        *prometheus.CounterVec
	operationsByResult *prometheus.CounterVec
	rollbackOutcomes   *prometheus.CounterVec
	runDuration        prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates and registers the metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runsByState: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lampctl",
				Name:      "runs_total",
				Help:      "Runs by terminal state",
			},
			[]string{"state"},
		),
		operationsByResult: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lampctl",
				Name:      "operations_total",
				Help:      "Operation transitions by resource kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		rollbackOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lampctl",
				Name:      "rollback_operations_total",
				Help:      "Rollback results by disposition",
			},
			[]string{"disposition"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lampctl",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of executor runs",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}

	registry.MustRegister(m.runsByState, m.operationsByResult, m.rollbackOutcomes, m.runDuration)
	return m
}

// ObserveOperation counts one operation transition.
func (m *Metrics) ObserveOperation(kind engine.ResourceKind, outcome engine.AuditOutcome) {
	m.operationsByResult.WithLabelValues(string(kind), string(outcome)).Inc()
	switch outcome {
	case engine.AuditRolledBack:
		m.rollbackOutcomes.WithLabelValues("reversed").Inc()
	case engine.AuditRollbackFailed:
		m.rollbackOutcomes.WithLabelValues("failed").Inc()
	case engine.AuditNotUndone:
		m.rollbackOutcomes.WithLabelValues("irreversible").Inc()
	}
}

// ObserveRun counts a terminal run state and its duration.
func (m *Metrics) ObserveRun(state engine.RunState, duration time.Duration) {
	m.runsByState.WithLabelValues(string(state)).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// Serve exposes the registry on addr. Blocking; meant for a goroutine when
// an operator wants live scraping of a long provisioning run.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("telemetry: metrics server failed: %w", err)
	}
	return nil
}
