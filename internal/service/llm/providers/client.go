package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNoCredential means neither the server nor the request supplied an API key
var ErrNoCredential = errors.New("no API key configured")

// ErrEmptyResponse means the provider answered without any text
var ErrEmptyResponse = errors.New("empty response")

// StatusError is a non-2xx answer from a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// postJSON sends body to url and returns the raw response body of a 2xx answer.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }() // Error ignored: response consumed

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s returned invalid JSON", provider)
	}

	return data, nil
}

// errorMessage pulls a human readable message out of an error body
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"error.message", "error", "message"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

// bodyBuilder assembles a JSON request body with sjson paths, keeping the
// first error.
type bodyBuilder struct {
	data []byte
	err  error
}

func (b *bodyBuilder) set(path string, value interface{}) {
	if b.err != nil {
		return
	}
	b.data, b.err = sjson.SetBytes(b.data, path, value)
}

func (b *bodyBuilder) bytes() ([]byte, error) {
	return b.data, b.err
}
