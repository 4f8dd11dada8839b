package domain

import "time"

// IncidentStatus represents the lifecycle status of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusNew           IncidentStatus = "New"
	IncidentStatusInvestigating IncidentStatus = "Investigating"
	IncidentStatusMitigated     IncidentStatus = "Mitigated"
	IncidentStatusResolved      IncidentStatus = "Resolved"
	IncidentStatusClosed        IncidentStatus = "Closed"
)

// IncidentStatuses lists every status in lifecycle order.
var IncidentStatuses = []IncidentStatus{
	IncidentStatusNew,
	IncidentStatusInvestigating,
	IncidentStatusMitigated,
	IncidentStatusResolved,
	IncidentStatusClosed,
}

// allowedTransitions is the complete transition table. A status never
// appears in its own set and there are no backward edges.
var allowedTransitions = map[IncidentStatus]map[IncidentStatus]bool{
	IncidentStatusNew:           {IncidentStatusInvestigating: true},
	IncidentStatusInvestigating: {IncidentStatusMitigated: true, IncidentStatusResolved: true},
	IncidentStatusMitigated:     {IncidentStatusResolved: true},
	IncidentStatusResolved:      {IncidentStatusClosed: true},
	IncidentStatusClosed:        {},
}

// IsValid checks if the status is one of the known literals.
func (s IncidentStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s IncidentStatus) CanTransitionTo(target IncidentStatus) bool {
	return allowedTransitions[s][target]
}

// IsOpen returns true while the incident is neither resolved nor closed.
func (s IncidentStatus) IsOpen() bool {
	return s != IncidentStatusResolved && s != IncidentStatusClosed
}

// Severity represents the severity label of an incident.
type Severity string

// Severity levels.
const (
	SeveritySEV1 Severity = "SEV1"
	SeveritySEV2 Severity = "SEV2"
	SeveritySEV3 Severity = "SEV3"
	SeveritySEV4 Severity = "SEV4"
)

// Incident represents an operational incident.
type Incident struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Severity       Severity       `json:"severity"`
	Status         IncidentStatus `json:"status"`
	ServiceID      int64          `json:"service_id"`
	AssigneeID     *int64         `json:"assignee_id"`
	CreatedAt      time.Time      `json:"created_at"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	ClosedAt       *time.Time     `json:"closed_at"`

	// Joined from the owning service on read.
	ServiceName   string    `json:"-"`
	ServicePolicy SLAPolicy `json:"-"`
}
