package incidents

import (
	"math"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/sla"
)

// Stats holds fleet-wide incident metrics.
type Stats struct {
	TotalIncidents  int     `json:"total_incidents"`
	OpenIncidents   int     `json:"open_incidents"`
	ClosedIncidents int     `json:"closed_incidents"`
	MTTAMinutes     float64 `json:"mtta_minutes"`
	MTTRMinutes     float64 `json:"mttr_minutes"`
	BreachRate      float64 `json:"breach_rate"`
}

// ComputeStats aggregates MTTA, MTTR and the breach rate over incidents.
//
// MTTA averages over acknowledged incidents. MTTR and the breach rate share
// one population: incidents with resolved_at or closed_at set, measured up
// to closed_at when present. Averages and the rate are rounded to two
// decimals, halves to even, and are zero when their population is empty.
func ComputeStats(incidents []*domain.Incident, resolver *sla.Resolver) Stats {
	stats := Stats{TotalIncidents: len(incidents)}
	if len(incidents) == 0 {
		return stats
	}

	var (
		ackTotal, ackCount         float64
		resolveTotal, resolveCount float64
		breaches                   int
	)

	for _, inc := range incidents {
		if inc.Status.IsOpen() {
			stats.OpenIncidents++
		}
		if inc.Status == domain.IncidentStatusClosed {
			stats.ClosedIncidents++
		}

		if inc.AcknowledgedAt != nil {
			ackTotal += inc.AcknowledgedAt.Sub(inc.CreatedAt).Minutes()
			ackCount++
		}

		if inc.ResolvedAt == nil && inc.ClosedAt == nil {
			continue
		}

		// EndTime never falls back to now here: one of the two is set.
		end := sla.EndTime(inc, inc.CreatedAt)
		resolveTotal += end.Sub(inc.CreatedAt).Minutes()
		resolveCount++

		hours := resolver.BudgetHours(inc.ServicePolicy, inc.Severity)
		if sla.IsBreached(inc.CreatedAt, end, hours) {
			breaches++
		}
	}

	if ackCount > 0 {
		stats.MTTAMinutes = round2(ackTotal / ackCount)
	}
	if resolveCount > 0 {
		stats.MTTRMinutes = round2(resolveTotal / resolveCount)
		stats.BreachRate = round2(float64(breaches) / resolveCount * 100)
	}

	return stats
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
