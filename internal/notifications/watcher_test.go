package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/incidents"
	"github.com/bissquit/incident-console/internal/sla"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBreachSource implements BreachSource for testing.
type mockBreachSource struct {
	breached  []*incidents.IncidentView
	recorded  map[int64]bool
	listErr   error
	recordErr map[int64]error
}

func (m *mockBreachSource) ListBreachedOpenIncidents(_ context.Context) ([]*incidents.IncidentView, error) {
	return m.breached, m.listErr
}

func (m *mockBreachSource) RecordBreach(_ context.Context, id int64) (bool, error) {
	if err := m.recordErr[id]; err != nil {
		return false, err
	}
	if m.recorded[id] {
		return false, nil
	}
	m.recorded[id] = true
	return true, nil
}

func breachedView(id int64, deadline time.Time) *incidents.IncidentView {
	return &incidents.IncidentView{
		Incident: domain.Incident{
			ID:          id,
			Title:       "Checkout errors",
			Severity:    domain.SeveritySEV1,
			Status:      domain.IncidentStatusInvestigating,
			ServiceName: "Payments API",
		},
		State: sla.State{Hours: 1, Deadline: deadline, Breached: true},
	}
}

func newTestWatcher(t *testing.T, source BreachSource, sender *fakeSender) *Watcher {
	t.Helper()
	renderer, err := NewRenderer()
	require.NoError(t, err)
	d, _ := newTestDispatcher(sender)
	w := NewWatcher(WatcherConfig{Schedule: "@every 1m", BaseURL: "https://console.example.com/"}, source, renderer, d)
	return w
}

func TestWatcher_Check_NotifiesOncePerIncident(t *testing.T) {
	// Arrange
	deadline := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	source := &mockBreachSource{
		breached: []*incidents.IncidentView{breachedView(1, deadline), breachedView(2, deadline)},
		recorded: map[int64]bool{2: true},
	}
	sender := &fakeSender{name: "mattermost"}
	w := newTestWatcher(t, source, sender)
	w.now = func() time.Time { return deadline.Add(10 * time.Minute) }

	// Act
	first, err := w.Check(context.Background())
	require.NoError(t, err)
	second, err := w.Check(context.Background())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "[SLA Breach] Checkout errors", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, "Overdue by: 10m")
	assert.Contains(t, sender.sent[0].Body, "https://console.example.com/incidents/1")
}

func TestWatcher_Check_Errors(t *testing.T) {
	t.Run("list failure", func(t *testing.T) {
		source := &mockBreachSource{listErr: errors.New("db down"), recorded: map[int64]bool{}}
		w := newTestWatcher(t, source, &fakeSender{name: "mattermost"})

		_, err := w.Check(context.Background())

		assert.Error(t, err)
	})

	t.Run("record failure skips incident", func(t *testing.T) {
		deadline := time.Now().Add(-time.Hour)
		source := &mockBreachSource{
			breached:  []*incidents.IncidentView{breachedView(1, deadline), breachedView(2, deadline)},
			recorded:  map[int64]bool{},
			recordErr: map[int64]error{1: errors.New("lock timeout")},
		}
		sender := &fakeSender{name: "mattermost"}
		w := newTestWatcher(t, source, sender)

		count, err := w.Check(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Len(t, sender.sent, 1)
	})

	t.Run("send failure still counts recorded breach", func(t *testing.T) {
		source := &mockBreachSource{
			breached: []*incidents.IncidentView{breachedView(1, time.Now().Add(-time.Hour))},
			recorded: map[int64]bool{},
		}
		sender := &fakeSender{name: "mattermost", errs: []error{permanentErr{}}}
		w := newTestWatcher(t, source, sender)

		count, err := w.Check(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.True(t, source.recorded[1])

		count, err = w.Check(context.Background())

		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Equal(t, 1, sender.calls, "a dropped alert is not resent once the breach is recorded")
	})
}

func TestWatcher_StartStop(t *testing.T) {
	source := &mockBreachSource{recorded: map[int64]bool{}}
	w := newTestWatcher(t, source, &fakeSender{name: "mattermost"})

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start must fail")
	w.Stop()
	w.Stop()
}

func TestWatcher_InvalidSchedule(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	w := NewWatcher(WatcherConfig{Schedule: "every now and then"}, &mockBreachSource{}, renderer, nil)

	assert.Error(t, w.Start(context.Background()))
}
