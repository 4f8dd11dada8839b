// Package notifications delivers SLA breach alerts to chat webhooks.
package notifications

import (
	"context"
	"errors"
)

// Notification is a rendered message addressed to one target.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Send(ctx context.Context, notification Notification) error
	Type() string
}

// ErrNoSenders is returned when a dispatcher has nothing to deliver through.
var ErrNoSenders = errors.New("no notification senders configured")

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}
