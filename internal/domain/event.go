package domain

import "time"

// EventType tags an entry in the incident timeline.
type EventType string

// Event types.
const (
	EventTypeStatusChange EventType = "status_change"
	EventTypeComment      EventType = "comment"
	EventTypeRunbookStep  EventType = "runbook_step"
	EventTypeSLABreach    EventType = "sla_breach"
)

// IncidentEvent is an immutable audit record attached to an incident.
type IncidentEvent struct {
	ID         int64     `json:"id"`
	IncidentID int64     `json:"incident_id"`
	Type       EventType `json:"type"`
	Body       string    `json:"body"`
	CreatedBy  *int64    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}
