package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Webhook POSTs released batches to a single endpoint.
type Webhook struct {
	url      string
	template string
	client   *http.Client
	recorder Recorder
	logger   zerolog.Logger
}

// NewWebhook creates a webhook dispatcher. template is "generic" or "slack".
func NewWebhook(url, template string, recorder Recorder, logger zerolog.Logger) *Webhook {
	return &Webhook{
		url:      url,
		template: template,
		client:   &http.Client{Timeout: 30 * time.Second},
		recorder: recorder,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch sends b. A 4xx answer wraps ErrRejected; other failures are
// worth retrying.
func (w *Webhook) Dispatch(ctx context.Context, b Batch) (Batch, error) {
	if b.Empty() {
		return b, nil
	}
	sent := markSent(b)

	var body []byte
	var err error
	switch w.template {
	case "slack":
		body, err = buildSlackPayload(sent)
	default:
		body, err = buildGenericPayload(sent)
	}
	if err != nil {
		return b, fmt.Errorf("build webhook payload: %w: %w", ErrRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return b, fmt.Errorf("create webhook request: %w: %w", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return b, fmt.Errorf("webhook POST to %s: %w", w.url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return b, fmt.Errorf("webhook returned %d: %w", resp.StatusCode, ErrRejected)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return b, fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	w.logger.Info().Str("incident_id", b.IncidentID).Str("trigger", b.Trigger).
		Int("requests", len(sent.Requests)).Int("alerts", len(sent.Alerts)).Msg("batch dispatched")
	record(ctx, w.recorder, w.logger, sent)
	return sent, nil
}

// GenericPayload is the default JSON body.
type GenericPayload struct {
	Event string `json:"event"`
	Batch
}

func buildGenericPayload(b Batch) ([]byte, error) {
	return json.Marshal(GenericPayload{Event: "incident.actions." + b.Trigger, Batch: b})
}

// buildSlackPayload creates a Slack Block Kit message.
func buildSlackPayload(b Batch) ([]byte, error) {
	emoji := ":ambulance:"
	if b.Trigger == TriggerApproved {
		emoji = ":white_check_mark:"
	}

	var lines []string
	for _, r := range b.Requests {
		lines = append(lines, fmt.Sprintf("• %d x %s from %s (%s, ETA %dm)", r.Quantity, r.ResourceType, r.VendorName, r.Urgency, r.ETAMinutes))
	}
	for _, a := range b.Alerts {
		lines = append(lines, fmt.Sprintf("• %s → %s: %s", a.AlertType, a.HospitalName, a.Message))
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]string{
				"type": "plain_text",
				"text": fmt.Sprintf("Incident actions %s", b.Trigger),
			},
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("%s *Incident:* %s", emoji, b.IncidentID)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Requests:* %d", len(b.Requests))},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Alerts:* %d", len(b.Alerts))},
			},
		},
	}
	if len(lines) > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": strings.Join(lines, "\n"),
			},
		})
	}

	return json.Marshal(map[string]interface{}{
		"blocks": blocks,
	})
}
