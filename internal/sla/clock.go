package sla

import (
	"time"

	"github.com/bissquit/incident-console/internal/domain"
)

// State is the SLA state of one incident at an evaluation time.
type State struct {
	Hours    int       `json:"sla_hours"`
	Deadline time.Time `json:"sla_deadline"`
	Breached bool      `json:"sla_breached"`
}

// Deadline returns createdAt shifted by exactly hours.
func Deadline(createdAt time.Time, hours int) time.Time {
	return createdAt.Add(time.Duration(hours) * time.Hour)
}

// IsBreached reports whether end lies strictly after the deadline.
// Ending exactly on the deadline is not a breach.
func IsBreached(createdAt, end time.Time, hours int) bool {
	return end.After(Deadline(createdAt, hours))
}

// EndTime returns the instant the SLA clock stopped for inc: closed_at,
// then resolved_at, then now for incidents that are still running.
func EndTime(inc *domain.Incident, now time.Time) time.Time {
	if inc.ClosedAt != nil {
		return *inc.ClosedAt
	}
	if inc.ResolvedAt != nil {
		return *inc.ResolvedAt
	}
	return now
}

// Evaluate computes the SLA status of inc using its service policy.
func (r *Resolver) Evaluate(inc *domain.Incident, now time.Time) State {
	hours := r.BudgetHours(inc.ServicePolicy, inc.Severity)
	return State{
		Hours:    hours,
		Deadline: Deadline(inc.CreatedAt, hours),
		Breached: IsBreached(inc.CreatedAt, EndTime(inc, now), hours),
	}
}
