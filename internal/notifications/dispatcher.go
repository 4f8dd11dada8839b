package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/incident-console/internal/pkg/ctxlog"
	"golang.org/x/time/rate"
)

// DispatcherConfig contains delivery settings.
type DispatcherConfig struct {
	RatePerSecond     float64
	Burst             int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultDispatcherConfig returns default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RatePerSecond:     1,
		Burst:             5,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Dispatcher fans a notification out to every sender, rate limited and
// retrying temporary failures.
type Dispatcher struct {
	config  DispatcherConfig
	senders []Sender
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(config DispatcherConfig, senders ...Sender) *Dispatcher {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}

	return &Dispatcher{
		config:  config,
		senders: senders,
		limiter: rate.NewLimiter(limit, config.Burst),
		sleep:   sleepContext,
	}
}

// Dispatch sends notification through all senders. A failing sender does not
// stop the others; the joined error of all failed senders is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, notification Notification) error {
	if len(d.senders) == 0 {
		return ErrNoSenders
	}

	var errs []error
	for _, sender := range d.senders {
		if err := d.sendWithRetry(ctx, sender, notification); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sender.Type(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, sender Sender, notification Notification) error {
	logger := ctxlog.FromContext(ctx)
	channelType := sender.Type()

	var err error
	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if waitErr := d.limiter.Wait(ctx); waitErr != nil {
			recordNotificationSent(channelType, "cancelled")
			return fmt.Errorf("rate limiter: %w", waitErr)
		}

		start := time.Now()
		err = sender.Send(ctx, notification)
		if err == nil {
			recordNotificationSent(channelType, "success")
			recordNotificationDuration(channelType, time.Since(start))
			logger.Debug("notification sent", "channel_type", channelType, "attempt", attempt)
			return nil
		}

		logger.Warn("send failed",
			"channel_type", channelType,
			"attempt", attempt,
			"max_attempts", d.config.MaxAttempts,
			"error", err,
		)

		if !isRetryable(err) || attempt == d.config.MaxAttempts {
			break
		}

		recordNotificationSent(channelType, "retry")
		if sleepErr := d.sleep(ctx, d.backoff(attempt)); sleepErr != nil {
			return sleepErr
		}
	}

	recordNotificationSent(channelType, "failed")
	return err
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	backoff := float64(d.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= d.config.BackoffMultiplier
	}

	if d.config.MaxBackoff > 0 && backoff > float64(d.config.MaxBackoff) {
		backoff = float64(d.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
