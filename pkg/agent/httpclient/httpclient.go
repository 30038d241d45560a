// Package httpclient implements the agent Client against the chatbot
// server's HTTP API: one POST per turn with a JSON body, plain-text reply in
// the response body.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SulavKhadka/voiceloop/pkg/agent"
)

const defaultTimeout = 120 * time.Second

// Compile-time assertion that Client satisfies agent.Client.
var _ agent.Client = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to share a
// transport or inject a test double.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout. Defaults to 120s. Ignored when
// WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client talks to a chatbot server over HTTP.
type Client struct {
	serverURL  string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Client posting turns to serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("httpclient: serverURL must not be empty")
	}
	c := &Client{serverURL: serverURL, timeout: defaultTimeout}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Send posts one turn and returns the server's plain-text reply.
func (c *Client) Send(ctx context.Context, msg agent.TurnMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("httpclient: encode turn: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpclient: post turn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("httpclient: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("httpclient: read reply: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
