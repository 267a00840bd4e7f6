package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yanun0323/errors"
)

// Notifier delivers out-of-band text notifications. Callers treat it as
// best-effort; it must never block order placement.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Webhook posts group-robot style text messages to a webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhook creates a webhook notifier with a short request timeout.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

// Notify posts the text to the webhook.
func (w *Webhook) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: text},
	})
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

// Nop discards notifications; used when no webhook is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
