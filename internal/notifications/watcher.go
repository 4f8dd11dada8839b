package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/incident-console/internal/incidents"
	"github.com/bissquit/incident-console/internal/pkg/ctxlog"
	"github.com/robfig/cron/v3"
)

// BreachSource lists breached incidents and records breach events.
type BreachSource interface {
	ListBreachedOpenIncidents(ctx context.Context) ([]*incidents.IncidentView, error)
	RecordBreach(ctx context.Context, incidentID int64) (bool, error)
}

// WatcherConfig contains breach watcher configuration.
type WatcherConfig struct {
	// Schedule is a cron spec with optional seconds field, e.g. "@every 1m".
	Schedule string
	// BaseURL is prepended to /incidents/{id} in alert links. Optional.
	BaseURL string
}

// Watcher periodically records SLA breaches of open incidents and alerts
// on the first breach of each incident.
type Watcher struct {
	config     WatcherConfig
	source     BreachSource
	renderer   *Renderer
	dispatcher *Dispatcher
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewWatcher creates a new breach watcher.
func NewWatcher(config WatcherConfig, source BreachSource, renderer *Renderer, dispatcher *Dispatcher) *Watcher {
	return &Watcher{
		config:     config,
		source:     source,
		renderer:   renderer,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the check. Runs stop when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron != nil {
		return fmt.Errorf("breach watcher already started")
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
	)), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(w.config.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.Check(ctx); err != nil {
			slog.Error("breach check failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid breach check schedule %q: %w", w.config.Schedule, err)
	}

	c.Start()
	w.cron = c

	slog.Info("breach watcher started", "schedule", w.config.Schedule)
	return nil
}

// Stop stops scheduling and waits for a running check to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	slog.Info("breach watcher stopped")
}

// Check scans open breached incidents once. Each newly recorded breach is
// dispatched. Returns the number of breaches recorded.
//
// A breach is committed before its alert is sent, so an alert the
// dispatcher gives up on is not retried by later checks. The breach event
// on the incident timeline remains the durable record.
func (w *Watcher) Check(ctx context.Context) (int, error) {
	breached, err := w.source.ListBreachedOpenIncidents(ctx)
	if err != nil {
		recordBreachCheck("error", 0)
		return 0, fmt.Errorf("list breached incidents: %w", err)
	}

	recorded := 0
	for _, incident := range breached {
		logCtx := ctxlog.With(ctx, "incident_id", incident.ID)

		ok, err := w.source.RecordBreach(logCtx, incident.ID)
		if err != nil {
			ctxlog.FromContext(logCtx).Error("failed to record breach", "error", err)
			continue
		}
		if !ok {
			continue
		}
		recorded++

		if err := w.notify(logCtx, incident); err != nil {
			ctxlog.FromContext(logCtx).Error("failed to send breach notification", "error", err)
		}
	}

	recordBreachCheck("success", recorded)
	if recorded > 0 {
		slog.Info("sla breaches recorded", "count", recorded, "scanned", len(breached))
	}
	return recorded, nil
}

func (w *Watcher) notify(ctx context.Context, incident *incidents.IncidentView) error {
	if w.dispatcher == nil {
		return nil
	}

	payload := BreachPayload{
		IncidentID:  incident.ID,
		Title:       incident.Title,
		Severity:    string(incident.Severity),
		Status:      string(incident.Status),
		ServiceName: incident.ServiceName,
		SLAHours:    incident.Hours,
		Deadline:    incident.Deadline,
		Overdue:     w.now().Sub(incident.Deadline).Truncate(time.Second),
	}
	if w.config.BaseURL != "" {
		payload.URL = fmt.Sprintf("%s/incidents/%d", strings.TrimRight(w.config.BaseURL, "/"), incident.ID)
	}

	subject, body, err := w.renderer.RenderBreach(payload)
	if err != nil {
		return err
	}

	return w.dispatcher.Dispatch(ctx, Notification{
		Subject: subject,
		Body:    body,
	})
}
