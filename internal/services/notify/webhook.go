package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/interfaces"
)

// suppressNotificationsFlag marks a webhook message as silent: delivered to
// the channel without triggering a push notification.
const suppressNotificationsFlag = 1 << 12

// WebhookDispatcher posts one chat message per listing to the configured
// webhook, in order, with a configurable delay between messages. Per-message
// failures are logged and skipped so one bad payload never loses the rest of
// the batch.
type WebhookDispatcher struct {
	client *http.Client
	config common.NotifyConfig
	logger arbor.ILogger
}

// NewWebhookDispatcher creates a dispatcher from notify configuration.
func NewWebhookDispatcher(config common.NotifyConfig, logger arbor.ILogger) *WebhookDispatcher {
	return &WebhookDispatcher{
		client: &http.Client{Timeout: config.RequestTimeout},
		config: config,
		logger: logger,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
	Flags   int    `json:"flags,omitempty"`
}

// SendListings posts the items in order, honoring each item's silent flag.
// Returns an error only when every message failed.
func (d *WebhookDispatcher) SendListings(ctx context.Context, queryDescription string, items []interfaces.NotifyItem) error {
	if len(items) == 0 {
		return nil
	}

	failed := 0
	for i, item := range items {
		if i > 0 && d.config.DelayBetweenMessages > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.config.DelayBetweenMessages):
			}
		}

		payload := webhookPayload{Content: formatListing(queryDescription, item)}
		if item.Silent {
			payload.Flags = suppressNotificationsFlag
		}

		if err := d.post(ctx, payload); err != nil {
			failed++
			d.logger.Warn().
				Str("property_id", item.Listing.PropertyID).
				Err(err).
				Msg("Failed to send listing notification")
		}
	}

	d.logger.Info().
		Int("sent", len(items)-failed).
		Int("failed", failed).
		Str("query", queryDescription).
		Msg("Notification batch dispatched")

	if failed == len(items) {
		return fmt.Errorf("all %d notification messages failed", failed)
	}
	return nil
}

// SendError posts a best-effort crawl failure notice.
func (d *WebhookDispatcher) SendError(ctx context.Context, queryDescription string, crawlErr error) error {
	payload := webhookPayload{
		Content: fmt.Sprintf("⚠️ 爬取失敗 %s\n%v", queryDescription, crawlErr),
	}
	return d.post(ctx, payload)
}

func (d *WebhookDispatcher) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// formatListing renders one listing message.
func formatListing(queryDescription string, item interfaces.NotifyItem) string {
	l := item.Listing

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 %s\n%s", queryDescription, l.Title)
	if l.PriceText != "" {
		fmt.Fprintf(&b, "\n💰 %s", l.PriceText)
	}
	if l.HouseType != "" || l.Rooms != "" {
		fmt.Fprintf(&b, "\n📐 %s %s", l.HouseType, l.Rooms)
	}
	for _, d := range l.MetroDistances {
		if d.StationName == "" && d.MetroValueText == "" {
			continue
		}
		fmt.Fprintf(&b, "\n🚇 %s %s", d.StationName, d.MetroValueText)
	}
	if len(l.MetroDistances) == 0 && l.StationName != "" {
		fmt.Fprintf(&b, "\n🚇 %s %s", l.StationName, l.MetroValueText)
	}
	if l.Link != "" {
		fmt.Fprintf(&b, "\n%s", l.Link)
	}
	return b.String()
}
