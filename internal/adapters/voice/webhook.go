package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook posts follow-up text to a text-to-speech bridge that speaks it on
// the caller's live session.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook for url. Per-call deadlines come from ctx.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type speakRequest struct {
	CallerID string `json:"caller_id"`
	Text     string `json:"text"`
}

// Deliver posts {caller_id, text}. Any non-2xx status is a failed delivery.
func (w *Webhook) Deliver(ctx context.Context, callerID, text string) error {
	body, err := json.Marshal(speakRequest{CallerID: callerID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal speak request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build speak request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("voice webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("voice webhook error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
