package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultInfoTimeout bounds one account-state request.
const DefaultInfoTimeout = 10 * time.Second

// InfoClient queries the info endpoint for account state over HTTP.
// Calls are independent and safe for concurrent use. Failed lookups are not
// retried; the caller decides what a missing snapshot means.
type InfoClient struct {
	endpoint string
	client   *http.Client
}

// InfoOption configures InfoClient.
type InfoOption func(*InfoClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) InfoOption {
	return func(c *InfoClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) InfoOption {
	return func(c *InfoClient) {
		c.client = client
	}
}

// NewInfoClient creates a new info endpoint client.
func NewInfoClient(endpoint string, opts ...InfoOption) *InfoClient {
	c := &InfoClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultInfoTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserState fetches the clearinghouse state for one account address.
func (c *InfoClient) UserState(ctx context.Context, user string) (*ClearinghouseState, error) {
	body, err := json.Marshal(infoRequest{Type: "clearinghouseState", User: user})
	if err != nil {
		return nil, fmt.Errorf("marshal info request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("info request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info status %d: %s", resp.StatusCode, excerpt(data))
	}

	var state ClearinghouseState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode clearinghouse state: %w", err)
	}

	return &state, nil
}

// excerpt truncates a payload for error messages.
func excerpt(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
