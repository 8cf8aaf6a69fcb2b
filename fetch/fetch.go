// Package fetch is the outbound HTTP layer shared by all source adapters.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the scraper to third-party sites.
const DefaultUserAgent = "Mozilla/5.0 (compatible; PVO-Limburg/1.0)"

// DefaultTimeout bounds each request.
const DefaultTimeout = 12 * time.Second

// Client issues GET requests with a fixed User-Agent and per-request
// timeout. There are no retries: a failed request is the caller's cue to
// record an empty result and keep going.
type Client struct {
	UserAgent  string
	HTTPClient *http.Client
}

// New creates a client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		UserAgent:  DefaultUserAgent,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Get fetches url and returns the response body as text. Any non-2xx status
// is an error.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return string(body), nil
}
