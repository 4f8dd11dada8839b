// Package mattermost posts notifications to a Mattermost incoming webhook.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/incident-console/internal/notifications"
)

const (
	channelType     = "mattermost"
	defaultTimeout  = 10 * time.Second
	defaultUsername = "Incident Console"
	maxErrorBody    = 1024
)

// Config holds Mattermost sender configuration.
type Config struct {
	// WebhookURL is used when a notification carries no explicit target.
	WebhookURL string
	Username   string
	IconURL    string
	Timeout    time.Duration
}

// Sender implements notifications.Sender via Incoming Webhooks.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new Mattermost sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Type returns the channel type.
func (s *Sender) Type() string {
	return channelType
}

// Send posts notification to its target webhook, or to the configured one.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL := notification.To
	if webhookURL == "" {
		webhookURL = s.config.WebhookURL
	}
	if webhookURL == "" {
		return &PermanentError{Message: "webhook URL is empty"}
	}

	payload := webhookPayload{
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
		Text:     notification.Body,
	}
	if notification.Subject != "" {
		payload.Text = fmt.Sprintf("### %s\n\n%s", notification.Subject, notification.Body)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, webhookURL)
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

func (s *Sender) handleResponse(resp *http.Response, webhookURL string) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		slog.Debug("mattermost message sent", "webhook", maskWebhookURL(webhookURL))
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{Code: resp.StatusCode, Message: fmt.Sprintf("bad request: %s", body)}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &PermanentError{Code: resp.StatusCode, Message: "invalid or expired webhook"}
	case resp.StatusCode == http.StatusNotFound:
		return &PermanentError{Code: resp.StatusCode, Message: "webhook not found"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{Code: resp.StatusCode, Message: "rate limited"}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("server error: %s", body)}
	default:
		return &PermanentError{Code: resp.StatusCode, Message: fmt.Sprintf("unexpected status: %s", body)}
	}
}

// maskWebhookURL hides the webhook key for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
