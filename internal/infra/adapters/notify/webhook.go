// File: internal/infra/adapters/notify/webhook.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"integrity-pipeline/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var (
	_ adapter.MarkerNotifier = (*WebhookNotifier)(nil)
	_ adapter.MarkerNotifier = (*NoopNotifier)(nil)
)

// WebhookNotifier posts submission events as JSON to the marking tool.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *zerolog.Logger
}

func NewWebhookNotifier(url string, timeout time.Duration, logger *zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "MarkerWebhook").Logger()
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}, log: &l}
}

type webhookBody struct {
	Event string `json:"event"`
	adapter.SubmissionCreatedEvent
	SentAt time.Time `json:"sent_at"`
}

func (n *WebhookNotifier) SubmissionCreated(ctx context.Context, ev adapter.SubmissionCreatedEvent) error {
	b, err := json.Marshal(webhookBody{Event: "submission_created", SubmissionCreatedEvent: ev, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marker webhook: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("marker webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("marker webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("marker webhook: unexpected status %d", resp.StatusCode)
	}
	n.log.Debug().Str("file_id", ev.FileID).Str("remote_submission_id", ev.RemoteSubmissionID).Msg("marker notified")
	return nil
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) SubmissionCreated(ctx context.Context, ev adapter.SubmissionCreatedEvent) error {
	return nil
}
