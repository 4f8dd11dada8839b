package catalog

import "errors"

// Catalog errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrRunbookNotFound = errors.New("runbook not found")
)
