package incidents

import (
	"github.com/bissquit/incident-console/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentconsole"

var transitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "transitions_total",
		Help:      "Total committed incident status transitions",
	},
	[]string{"from", "to"},
)

// recordTransition records a committed status transition.
func recordTransition(from, to domain.IncidentStatus) {
	transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}
