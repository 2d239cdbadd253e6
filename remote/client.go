// Package remote holds the HTTP clients for the cart, order and address
// services. All response-shape quirks are normalized at this boundary;
// the rest of the library only sees canonical domain types.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// DefaultTimeout bounds every remote call. A timeout is handled exactly
// like any other network failure: the caller falls back to local state.
const DefaultTimeout = 15 * time.Second

// Client is a thin JSON-over-HTTP caller shared by the service clients.
// A circuit breaker per remote host keeps a flapping backend from adding
// its full timeout to every cart interaction.
type Client struct {
	base string
	hc   *http.Client
	cb   *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(name, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		base: baseURL,
		hc:   &http.Client{Timeout: timeout},
		cb:   cb,
	}
}

// do performs one request and decodes the enveloped response into out
// (which may be nil for calls whose payload is irrelevant).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			var env envelope
			_ = json.Unmarshal(raw, &env)
			if env.Message != "" {
				return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, env.Message, resp.StatusCode)
			}
			return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}
		return raw, nil
	})
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}

	return unwrap(body, out)
}
