package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/incident-console/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender_Defaults(t *testing.T) {
	sender := NewSender(Config{})

	assert.Equal(t, defaultUsername, sender.config.Username)
	assert.Equal(t, defaultTimeout, sender.config.Timeout)
	assert.Equal(t, "mattermost", sender.Type())
}

func TestSender_Send_Payload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(Config{WebhookURL: server.URL, IconURL: "https://example.com/icon.png"})

	err := sender.Send(context.Background(), notifications.Notification{
		Subject: "[SLA Breach] Checkout errors",
		Body:    "Overdue by 5m",
	})

	require.NoError(t, err)
	assert.Equal(t, "### [SLA Breach] Checkout errors\n\nOverdue by 5m", got.Text)
	assert.Equal(t, defaultUsername, got.Username)
	assert.Equal(t, "https://example.com/icon.png", got.IconURL)
}

func TestSender_Send_ExplicitTargetWins(t *testing.T) {
	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(Config{WebhookURL: "http://127.0.0.1:1/unused"})

	err := sender.Send(context.Background(), notifications.Notification{To: server.URL, Body: "x"})

	require.NoError(t, err)
	assert.True(t, hit)
}

func TestSender_Send_EmptyWebhook(t *testing.T) {
	err := NewSender(Config{}).Send(context.Background(), notifications.Notification{Body: "x"})

	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Contains(t, permErr.Message, "webhook URL is empty")
}

func TestSender_Send_StatusHandling(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantRetryable bool
		wantMessage   string
	}{
		{name: "bad request", status: http.StatusBadRequest, body: "invalid payload", wantMessage: "bad request: invalid payload"},
		{name: "unauthorized", status: http.StatusUnauthorized, wantMessage: "invalid or expired webhook"},
		{name: "forbidden", status: http.StatusForbidden, wantMessage: "invalid or expired webhook"},
		{name: "not found", status: http.StatusNotFound, wantMessage: "webhook not found"},
		{name: "teapot", status: http.StatusTeapot, body: "short and stout", wantMessage: "unexpected status: short and stout"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantRetryable: true, wantMessage: "rate limited"},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantRetryable: true, wantMessage: "server error: boom"},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantRetryable: true, wantMessage: "server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewSender(Config{WebhookURL: server.URL}).Send(context.Background(), notifications.Notification{Body: "x"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMessage)
			type retryable interface{ IsRetryable() bool }
			var r retryable
			require.ErrorAs(t, err, &r)
			assert.Equal(t, tt.wantRetryable, r.IsRetryable())
		})
	}
}

func TestSender_Send_NetworkError(t *testing.T) {
	sender := NewSender(Config{WebhookURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond})

	err := sender.Send(context.Background(), notifications.Notification{Body: "x"})

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Contains(t, retryErr.Message, "send request")
}

func TestMaskWebhookURL(t *testing.T) {
	assert.Equal(t, "http://example.com/hook", maskWebhookURL("http://example.com/hook"))
	assert.Equal(t, "https://mattermost.e...u901vwx234",
		maskWebhookURL("https://mattermost.example.com/hooks/abc123def456ghi789jkl012mno345pqr678stu901vwx234"))
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "mattermost error 400: bad request", (&PermanentError{Code: 400, Message: "bad request"}).Error())
	assert.Equal(t, "mattermost error: webhook URL is empty", (&PermanentError{Message: "webhook URL is empty"}).Error())
	assert.Equal(t, "mattermost error 500: server error", (&RetryableError{Code: 500, Message: "server error"}).Error())
}
