package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"clearsky/internal/types"
)

// Event types carried in the webhook envelope.
const (
	eventTriggered = "alert.triggered"
	eventCancelled = "alert.cancelled"
)

// maxResponseBodyRead limits how much of a response body is read for error
// details.
const maxResponseBodyRead = 4096

var _ Sink = (*WebhookSink)(nil)

// webhookEnvelope is the wire format posted to the destination.
type webhookEnvelope struct {
	Event        string                   `json:"event"`
	AlertID      string                   `json:"alertId"`
	Notification *types.AlertNotification `json:"notification,omitempty"`
	SentAt       time.Time                `json:"sentAt"`
}

// WebhookSink delivers notifications as JSON POSTs to a fixed destination
// URL. Triggered and cancelled events share one envelope format keyed by
// alert ID, so receivers can replace or withdraw earlier notifications.
type WebhookSink struct {
	client    *http.Client
	url       string
	userAgent string
	logger    *slog.Logger
}

// WebhookSinkConfig holds the configuration for creating a WebhookSink.
type WebhookSinkConfig struct {
	Client    *http.Client
	URL       string
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewWebhookSink creates a WebhookSink with the given configuration.
func NewWebhookSink(cfg WebhookSinkConfig) *WebhookSink {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookSink{
		client:    client,
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Name identifies the sink in logs.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver posts the triggered-alert envelope to the destination.
func (s *WebhookSink) Deliver(ctx context.Context, n *types.AlertNotification) error {
	return s.post(ctx, webhookEnvelope{
		Event:        eventTriggered,
		AlertID:      n.AlertID,
		Notification: n,
		SentAt:       time.Now().UTC(),
	})
}

// Cancel posts a cancellation envelope so the receiver can withdraw the
// notification for this alert.
func (s *WebhookSink) Cancel(ctx context.Context, alertID string) error {
	return s.post(ctx, webhookEnvelope{
		Event:   eventCancelled,
		AlertID: alertID,
		SentAt:  time.Now().UTC(),
	})
}

func (s *WebhookSink) post(ctx context.Context, envelope webhookEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalEncoding, "failed to marshal webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamNotify, "webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamNotify,
		"webhook returned an error status", nil,
		map[string]any{
			"status": resp.StatusCode,
			"body":   string(body),
		})
}
