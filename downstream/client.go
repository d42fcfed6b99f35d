// Package downstream implements the gateway's HTTP clients to the three
// sibling microservices it proxies to: semantic-search, ai-agents, and the
// Context Management Service. Each client owns its own pooled *http.Client
// and exposes a Name() usable as a circuit breaker resource key.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kevin-toles/llm-gateway/gwerrors"
)

// Client is the shared transport every downstream service client embeds.
// It owns connection pooling and bounded-timeout request/response
// marshaling; it does not itself know about retries or circuit breaking —
// those are the caller's concern. The orchestrator's compression step calls
// CMS.Process directly, without a breaker or circuit.Chain around it.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a downstream client with a pooled transport and a
// bounded per-request timeout (default 30s, matching every downstream call
// in the gateway).
func NewClient(name, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name identifies this client as a circuit breaker resource key.
func (c *Client) Name() string { return c.name }

// postJSON POSTs a JSON-encoded body to path and decodes the JSON response
// into out. A nil out discards the response body after reading it (so the
// connection can still be reused).
func (c *Client) postJSON(ctx context.Context, path string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return gwerrors.Wrap(gwerrors.KindProvider, fmt.Sprintf("%s: marshal request", c.name), err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindProvider, fmt.Sprintf("%s: build request", c.name), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindProvider, fmt.Sprintf("%s: request failed", c.name), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindProvider, fmt.Sprintf("%s: read response", c.name), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gwerrors.Wrap(gwerrors.KindProvider, fmt.Sprintf("%s: status %d", c.name, resp.StatusCode), fmt.Errorf("%s", data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return gwerrors.Wrap(gwerrors.KindProvider, fmt.Sprintf("%s: decode response", c.name), err)
	}
	return nil
}
