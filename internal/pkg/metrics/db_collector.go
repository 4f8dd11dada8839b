package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// IncidentSnapshot is the aggregate exported by RecordIncidentStats.
type IncidentSnapshot struct {
	Total, Open, Closed int
	MTTAMinutes         float64
	MTTRMinutes         float64
	BreachRate          float64
}

// RecordDBPoolMetrics updates database pool metrics.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	stats := pool.Stat()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
}

// RecordIncidentStats updates incident aggregate gauges.
func RecordIncidentStats(s IncidentSnapshot) {
	Incidents.WithLabelValues("total").Set(float64(s.Total))
	Incidents.WithLabelValues("open").Set(float64(s.Open))
	Incidents.WithLabelValues("closed").Set(float64(s.Closed))
	IncidentMTTAMinutes.Set(s.MTTAMinutes)
	IncidentMTTRMinutes.Set(s.MTTRMinutes)
	IncidentBreachRate.Set(s.BreachRate)
}
