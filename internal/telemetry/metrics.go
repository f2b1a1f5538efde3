// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// the learning pipeline, the discussion buffer and the retry wrapper.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recall"

// Cycle outcomes.
const (
	CycleProcessed = "processed"
	CycleIdle      = "idle"
	CycleFailed    = "failed"
)

// Digest outcomes.
const (
	DigestArchived = "archived"
	DigestEmpty    = "empty"
	DigestFailed   = "failed"
)

// Metrics holds every collector on a private registry. All methods are
// nil-safe so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	entriesFetched prometheus.Counter
	entriesUsed    prometheus.Counter
	candidates     prometheus.Counter
	factsAdded     prometheus.Counter
	factsTotal     prometheus.Gauge
	checkpoint     prometheus.Gauge
	pendingPoints  prometheus.Gauge
	pointsIngested *prometheus.CounterVec
	digests        *prometheus.CounterVec
	retries        *prometheus.CounterVec
}

// NewMetrics registers the collectors, plus the Go and process collectors,
// on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "cycles_total",
			Help:      "Learning cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a learning cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		entriesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "entries_fetched_total",
			Help:      "Audit-log entries fetched.",
		}),
		entriesUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "entries_selected_total",
			Help:      "Audit-log entries sent to the extraction oracle.",
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "fact_candidates_total",
			Help:      "Candidate facts returned by the extraction oracle.",
		}),
		factsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "facts_added_total",
			Help:      "Facts newly added to long-term memory.",
		}),
		factsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "facts",
			Help:      "Facts currently held in long-term memory.",
		}),
		checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "checkpoint_timestamp_seconds",
			Help:      "Timestamp of the most recently processed audit-log entry.",
		}),
		pendingPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discussion",
			Name:      "pending_points",
			Help:      "Discussion points waiting for the next digest.",
		}),
		pointsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discussion",
			Name:      "points_ingested_total",
			Help:      "Discussion points accepted, by ingestion surface.",
		}, []string{"source"}),
		digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discussion",
			Name:      "digests_total",
			Help:      "Digest flushes by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "retries_total",
			Help:      "Oracle call retries, by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleDuration, m.entriesFetched, m.entriesUsed,
		m.candidates, m.factsAdded, m.factsTotal, m.checkpoint,
		m.pendingPoints, m.pointsIngested, m.digests, m.retries,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CycleStats is what a learning cycle reports to metrics.
type CycleStats struct {
	Outcome    string
	Duration   time.Duration
	Fetched    int
	Selected   int
	Candidates int
	Added      int
	Checkpoint *time.Time
}

// ObserveCycle records one learning cycle.
func (m *Metrics) ObserveCycle(s CycleStats) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(s.Outcome).Inc()
	m.cycleDuration.Observe(s.Duration.Seconds())
	m.entriesFetched.Add(float64(s.Fetched))
	m.entriesUsed.Add(float64(s.Selected))
	m.candidates.Add(float64(s.Candidates))
	m.factsAdded.Add(float64(s.Added))
	if s.Checkpoint != nil {
		m.SetCheckpoint(*s.Checkpoint)
	}
}

// SetCheckpoint publishes the current checkpoint.
func (m *Metrics) SetCheckpoint(ts time.Time) {
	if m == nil {
		return
	}
	m.checkpoint.Set(float64(ts.UnixNano()) / 1e9)
}

// SetFacts publishes the fact count.
func (m *Metrics) SetFacts(n int) {
	if m == nil {
		return
	}
	m.factsTotal.Set(float64(n))
}

// SetPendingPoints publishes the buffer length.
func (m *Metrics) SetPendingPoints(n int) {
	if m == nil {
		return
	}
	m.pendingPoints.Set(float64(n))
}

// PointIngested counts one accepted discussion point.
func (m *Metrics) PointIngested(source string) {
	if m == nil {
		return
	}
	m.pointsIngested.WithLabelValues(source).Inc()
}

// DigestFlushed counts one digest flush.
func (m *Metrics) DigestFlushed(outcome string) {
	if m == nil {
		return
	}
	m.digests.WithLabelValues(outcome).Inc()
}

// Retry counts one retry of op.
func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}
