// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentconsole"

var (
	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestsInFlight tracks requests currently being served.
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served",
	})

	// DBPoolConnections tracks database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	// Incidents tracks incident counts by population.
	Incidents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "count",
			Help:      "Number of incidents by population (total, open, closed)",
		},
		[]string{"population"},
	)

	// IncidentMTTAMinutes is the mean time to acknowledge.
	IncidentMTTAMinutes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "mtta_minutes",
		Help:      "Mean time to acknowledge in minutes",
	})

	// IncidentMTTRMinutes is the mean time to resolve.
	IncidentMTTRMinutes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "mttr_minutes",
		Help:      "Mean time to resolve in minutes",
	})

	// IncidentBreachRate is the percentage of resolved incidents that breached SLA.
	IncidentBreachRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "sla_breach_rate_percent",
		Help:      "Percentage of resolved incidents that breached their SLA",
	})
)
