package domain

// SLAPolicy maps a severity label to its response budget in hours.
// A policy may be partial or empty.
type SLAPolicy map[Severity]int

// Service represents a service that owns incidents and runbooks.
type Service struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerTeam string    `json:"owner_team"`
	SLAPolicy SLAPolicy `json:"sla_policy"`
}

// Runbook is an ordered list of remediation steps for a service.
type Runbook struct {
	ID        int64    `json:"id"`
	ServiceID int64    `json:"service_id"`
	Title     string   `json:"title"`
	Steps     []string `json:"steps_json"`
}
