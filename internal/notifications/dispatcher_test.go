package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender implements Sender for testing.
type fakeSender struct {
	name  string
	errs  []error
	sent  []Notification
	calls int
}

func (f *fakeSender) Type() string { return f.name }

func (f *fakeSender) Send(_ context.Context, n Notification) error {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, n)
	return nil
}

type permanentErr struct{}

func (permanentErr) Error() string     { return "permanent" }
func (permanentErr) IsRetryable() bool { return false }

func newTestDispatcher(senders ...Sender) (*Dispatcher, *[]time.Duration) {
	cfg := DefaultDispatcherConfig()
	cfg.RatePerSecond = 0
	d := NewDispatcher(cfg, senders...)
	var sleeps []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) error {
		sleeps = append(sleeps, dur)
		return nil
	}
	return d, &sleeps
}

func TestDispatcher_RetriesTemporaryFailures(t *testing.T) {
	// Arrange
	sender := &fakeSender{name: "mattermost", errs: []error{errors.New("timeout"), errors.New("timeout")}}
	d, sleeps := newTestDispatcher(sender)

	// Act
	err := d.Dispatch(context.Background(), Notification{Subject: "s", Body: "b"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDispatcher_StopsOnPermanentFailure(t *testing.T) {
	sender := &fakeSender{name: "mattermost", errs: []error{permanentErr{}}}
	d, sleeps := newTestDispatcher(sender)

	err := d.Dispatch(context.Background(), Notification{Body: "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mattermost: permanent")
	assert.Equal(t, 1, sender.calls)
	assert.Empty(t, *sleeps)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	fail := errors.New("unavailable")
	sender := &fakeSender{name: "mattermost", errs: []error{fail, fail, fail, fail}}
	d, _ := newTestDispatcher(sender)

	err := d.Dispatch(context.Background(), Notification{Body: "b"})

	assert.ErrorIs(t, err, fail)
	assert.Equal(t, 3, sender.calls)
}

func TestDispatcher_OneFailingSenderDoesNotBlockOthers(t *testing.T) {
	broken := &fakeSender{name: "broken", errs: []error{permanentErr{}}}
	healthy := &fakeSender{name: "healthy"}
	d, _ := newTestDispatcher(broken, healthy)

	err := d.Dispatch(context.Background(), Notification{Body: "b"})

	require.Error(t, err)
	assert.Len(t, healthy.sent, 1)
}

func TestDispatcher_NoSenders(t *testing.T) {
	d, _ := newTestDispatcher()

	assert.ErrorIs(t, d.Dispatch(context.Background(), Notification{}), ErrNoSenders)
}

func TestDispatcher_Backoff(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
	})

	assert.Equal(t, time.Second, d.backoff(1))
	assert.Equal(t, 2*time.Second, d.backoff(2))
	assert.Equal(t, 4*time.Second, d.backoff(3))
	assert.Equal(t, 5*time.Second, d.backoff(4))
}

func TestDispatcher_CancelledContext(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	sender := &fakeSender{name: "mattermost"}
	d := NewDispatcher(cfg, sender)

	// The first send consumes the only token.
	require.NoError(t, d.Dispatch(context.Background(), Notification{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Dispatch(ctx, Notification{})

	require.Error(t, err)
	assert.Equal(t, 1, sender.calls)
}
