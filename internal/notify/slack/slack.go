// Package slack forwards triggered price alerts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
	"github.com/linnemanlabs/coinwatch/internal/coins"
)

const (
	maxBodyLen  = 3000
	httpTimeout = 10 * time.Second
)

// Notifier posts notifications to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
	clock      func() time.Time
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
		clock:      time.Now,
	}
}

// Notify posts n to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, note alerts.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(note, n.clock()))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "notification_id", note.ID, "coin", note.Data.CoinID)
	return nil
}

func buildMessage(note alerts.Notification, now time.Time) map[string]any {
	return map[string]any{
		"text": note.Title + ": " + note.Body,
		"blocks": []map[string]any{
			headerBlock(note),
			bodyBlock(note),
			{"type": "divider"},
			contextBlock(note, now),
		},
	}
}

func headerBlock(note alerts.Notification) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s", directionEmoji(note.Body), note.Title),
		},
	}
}

func bodyBlock(note alerts.Notification) map[string]any {
	text := truncate(note.Body, maxBodyLen)
	if text == "" {
		text = "_No details._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(note alerts.Notification, now time.Time) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("coinwatch • %s • %s", coins.Label(note.Data.CoinID), now.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

// directionEmoji picks a chart emoji from the direction word in the body.
func directionEmoji(body string) string {
	switch {
	case strings.Contains(body, " is "+string(alerts.Below)+" "):
		return "\U0001f4c9" // chart decreasing
	case strings.Contains(body, " is "+string(alerts.Above)+" "):
		return "\U0001f4c8" // chart increasing
	default:
		return "\U0001f514" // bell
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
