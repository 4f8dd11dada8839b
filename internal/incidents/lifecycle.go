package incidents

import (
	"fmt"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
)

// ApplyTransition moves inc to target and stamps the lifecycle timestamps.
// rca is the incident's current RCA or nil. On error inc is left untouched.
func ApplyTransition(inc *domain.Incident, target domain.IncidentStatus, rca *domain.RCA, now time.Time) error {
	if !inc.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, inc.Status, target)
	}

	if target == domain.IncidentStatusClosed {
		if err := checkClosure(rca); err != nil {
			return err
		}
	}

	switch target {
	case domain.IncidentStatusInvestigating:
		// The first acknowledgement is kept.
		if inc.AcknowledgedAt == nil {
			inc.AcknowledgedAt = timePtr(now)
		}
	case domain.IncidentStatusResolved:
		inc.ResolvedAt = timePtr(now)
	case domain.IncidentStatusClosed:
		inc.ClosedAt = timePtr(now)
	}

	inc.Status = target
	return nil
}

// checkClosure enforces that a complete RCA exists before closing.
func checkClosure(rca *domain.RCA) error {
	if rca == nil {
		return ErrRCARequired
	}
	if !rca.IsComplete() {
		return ErrRCAIncomplete
	}
	return nil
}

// statusChangeBody returns the audit body for a transition.
func statusChangeBody(target domain.IncidentStatus, note string) string {
	if note != "" {
		return note
	}
	return fmt.Sprintf("Status changed to %s", target)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
