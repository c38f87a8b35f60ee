// Package metrics exposes pool occupancy and query outcomes in the Prometheus
// exposition format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

const namespace = "dbtunnel"

// OutcomeOK labels queries that succeeded.
const OutcomeOK = "ok"

// StatsSource reports the current pool snapshot.
type StatsSource interface {
	GetStats() datasource.ConnectionStats
}

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers pool gauges reading from stats plus the query collectors.
func New(stats StatsSource) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries executed, by endpoint and outcome code.",
		}, []string{"endpoint", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time from lease acquisition to result, by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	registry.MustRegister(m.queries, m.duration)

	poolGauge := func(name, help string, value func(datasource.ConnectionStats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats.GetStats()) })
	}
	registry.MustRegister(
		poolGauge("initialized", "1 once the pool is ready.", func(s datasource.ConnectionStats) float64 {
			if s.Initialized {
				return 1
			}
			return 0
		}),
		poolGauge("max_connections", "Configured connection limit.", func(s datasource.ConnectionStats) float64 {
			return float64(s.Pool.MaxConns)
		}),
		poolGauge("open_connections", "Established connections.", func(s datasource.ConnectionStats) float64 {
			return float64(s.Pool.OpenConns)
		}),
		poolGauge("in_use_connections", "Connections currently leased.", func(s datasource.ConnectionStats) float64 {
			return float64(s.Pool.InUse)
		}),
		poolGauge("idle_connections", "Connections waiting in the pool.", func(s datasource.ConnectionStats) float64 {
			return float64(s.Pool.Idle)
		}),
		poolGauge("wait_count", "Leases that had to wait for a connection.", func(s datasource.ConnectionStats) float64 {
			return float64(s.Pool.WaitCount)
		}),
		poolGauge("wait_seconds", "Total time spent waiting for a connection.", func(s datasource.ConnectionStats) float64 {
			return s.Pool.WaitDuration.Seconds()
		}),
	)

	return m
}

// ObserveQuery records one query. code is empty on success, otherwise the
// stable error code it failed with.
func (m *Metrics) ObserveQuery(endpoint, code string, elapsed time.Duration) {
	outcome := code
	if outcome == "" {
		outcome = OutcomeOK
	}
	m.queries.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
