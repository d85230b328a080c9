package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultPublishTimeout bounds a single webhook delivery.
const DefaultPublishTimeout = 10 * time.Second

// HTTPPublisher delivers StatusMessage notifications as a JSON POST to a
// configured webhook URL, one per topic, over a plain net/http client
// rather than a cloud-specific topic client.
type HTTPPublisher struct {
	webhookURLs map[string]string
	client      *http.Client
}

// NewHTTPPublisher builds a publisher that resolves each topic name to the
// webhook URL registered for it.
func NewHTTPPublisher(webhookURLs map[string]string, client *http.Client) *HTTPPublisher {
	if client == nil {
		client = &http.Client{Timeout: DefaultPublishTimeout}
	}
	return &HTTPPublisher{webhookURLs: webhookURLs, client: client}
}

func (p *HTTPPublisher) Publish(ctx context.Context, topic string, message StatusMessage) error {
	url, ok := p.webhookURLs[topic]
	if !ok {
		return fmt.Errorf("no webhook registered for topic %q", topic)
	}

	body, err := json.Marshal(message.AsDict())
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
