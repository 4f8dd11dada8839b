package domain

import "strings"

// RCA is the root cause analysis attached to a single incident.
type RCA struct {
	ID                  int64  `json:"id"`
	IncidentID          int64  `json:"incident_id"`
	RootCause           string `json:"root_cause"`
	ContributingFactors string `json:"contributing_factors"`
	CorrectiveActions   string `json:"corrective_actions"`
	PreventionActions   string `json:"prevention_actions"`
}

// IsComplete returns true if every field has non-whitespace content.
func (r *RCA) IsComplete() bool {
	for _, field := range []string{
		r.RootCause,
		r.ContributingFactors,
		r.CorrectiveActions,
		r.PreventionActions,
	} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}
