// Package notion is a small client for the Notion databases API, the
// archive's metadata service.
package notion

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

	"ESMP/logger"
	"ESMP/metrics"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("notion: no matching record")

// APIError is a non-success response from the service.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: status %d: %s", e.Status, e.Message)
}

// Client talks to the Notion REST API.
type Client struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
}

// NewClient creates an API client. baseURL is e.g. "https://api.notion.com/v1".
func NewClient(baseURL, token, version string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		version: version,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient replaces the transport, e.g. for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *Client) createRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends the request and decodes a success body into out. op names the
// call for logs and metrics.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.createRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "transport_error").Inc()
		logger.Warn("notion request failed",
			logger.String("op", op),
			logger.ErrorField(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(op, "status_error").Inc()
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		logger.Warn("notion returned error status",
			logger.String("op", op),
			logger.Int("status", resp.StatusCode),
			logger.String("code", apiErr.Code))
		return fmt.Errorf("%s: %w", op, apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "decode_error").Inc()
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	metrics.UpstreamRequests.WithLabelValues(op, "ok").Inc()
	return nil
}
