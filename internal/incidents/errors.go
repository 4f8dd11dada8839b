package incidents

import (
	"errors"
	"fmt"
)

// Lookup errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrRCANotFound      = errors.New("rca not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrAssigneeNotFound = errors.New("assignee not found")
	ErrRunbookNotFound  = errors.New("runbook not found for this service")
)

// Lifecycle errors.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrClosureBlocked    = errors.New("closure blocked")
	ErrInvalidInput      = errors.New("invalid input")
)

// Closure gate reasons. Both match ErrClosureBlocked.
var (
	ErrRCARequired   = fmt.Errorf("%w: RCA is required before closing an incident", ErrClosureBlocked)
	ErrRCAIncomplete = fmt.Errorf("%w: all RCA fields are required before closing", ErrClosureBlocked)
)
