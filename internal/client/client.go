// Package client talks to the mrilo server over HTTP on behalf of the terminal client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const jsonContentType = "application/json"

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed: status code %d", e.StatusCode)
	}
	return e.Message
}

// Client is a thin JSON-over-HTTP client for the server API
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// New creates a client for the server at baseURL
func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasToken reports whether authenticated endpoints can be called
func (c *Client) HasToken() bool {
	return c.token != ""
}

// do sends body as JSON and returns the raw response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", jsonContentType)
	if body != nil {
		req.Header.Set("Content-Type", jsonContentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{StatusCode: res.StatusCode, Message: errorMessage(data)}
		c.logger.Debug("api error", "method", method, "path", path, "status", res.StatusCode, "error", apiErr.Message)
		return nil, apiErr
	}
	return data, nil
}

// errorMessage reads either the chat envelope {error} or a problem detail
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, path := range []string{"error", "detail", "title"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
