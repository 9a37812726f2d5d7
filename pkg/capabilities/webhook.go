package capabilities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 30 * time.Second

// HTTPWebhookClient posts JSON payloads with a per-request timeout. Timeout
// enforcement lives here, not in the engine.
type HTTPWebhookClient struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPWebhookClient creates a webhook client. A non-positive timeout
// falls back to 30 seconds.
func NewHTTPWebhookClient(timeout time.Duration) *HTTPWebhookClient {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &HTTPWebhookClient{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Post sends the payload as a JSON POST and returns the response status code.
func (c *HTTPWebhookClient) Post(ctx context.Context, url string, payload map[string]any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return resp.StatusCode, nil
}
