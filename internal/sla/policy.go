// Package sla resolves SLA budgets and evaluates deadlines and breaches.
package sla

import "github.com/bissquit/incident-console/internal/domain"

// DefaultFallbackHours is the budget for severities no table knows about.
const DefaultFallbackHours = 24

// Config contains the global SLA defaults.
type Config struct {
	Defaults      map[domain.Severity]int
	FallbackHours int
}

// DefaultConfig returns the built-in severity budgets.
func DefaultConfig() Config {
	return Config{
		Defaults: map[domain.Severity]int{
			domain.SeveritySEV1: 1,
			domain.SeveritySEV2: 4,
			domain.SeveritySEV3: 8,
			domain.SeveritySEV4: 24,
		},
		FallbackHours: DefaultFallbackHours,
	}
}

// Resolver picks the budget that applies to an incident.
type Resolver struct {
	defaults map[domain.Severity]int
	fallback int
}

// NewResolver creates a resolver from the given configuration.
func NewResolver(cfg Config) *Resolver {
	defaults := make(map[domain.Severity]int, len(cfg.Defaults))
	for sev, hours := range cfg.Defaults {
		defaults[sev] = hours
	}

	fallback := cfg.FallbackHours
	if fallback <= 0 {
		fallback = DefaultFallbackHours
	}

	return &Resolver{defaults: defaults, fallback: fallback}
}

// BudgetHours returns the response budget for severity. A service override
// always wins, even when it is lower than the default. Unknown severities
// get the fallback budget instead of an error.
func (r *Resolver) BudgetHours(policy domain.SLAPolicy, severity domain.Severity) int {
	if hours, ok := policy[severity]; ok {
		return hours
	}
	if hours, ok := r.defaults[severity]; ok {
		return hours
	}
	return r.fallback
}
