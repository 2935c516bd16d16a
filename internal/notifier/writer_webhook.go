package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookWriter POSTs events as JSON to a subscriber endpoint.
type WebhookWriter struct {
	url    string
	client *http.Client
}

func NewWebhookWriter(url string, timeout time.Duration) *WebhookWriter {
	return &WebhookWriter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookWriter) Write(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("webhook responded with status %d: %s", resp.StatusCode, string(body))
}
