package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/incident-console/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a status code. Message, when set,
// replaces the error text in the response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the response of the first mapping matching err.
// Unmapped errors are logged and answered with 500 without leaking details.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	logger := ctxlog.FromContext(ctx)

	if m, ok := lookup(err, mappings); ok {
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		logger.Debug("request rejected", "status", m.Status, "error", err)
		Error(w, m.Status, msg)
		return
	}

	if errors.Is(err, context.Canceled) {
		logger.Warn("request cancelled", "error", err)
		Error(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

func lookup(err error, mappings []ErrorMapping) (ErrorMapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}
