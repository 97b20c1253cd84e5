// Package client is a small HTTP client for the axon-ingest API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// Client handles communication with an axon-ingest server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known answers back onto the model errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return models.ErrInvalidInput
	case http.StatusNotFound:
		return models.ErrNotFound
	}
	return nil
}

// submitRequest is the body of POST /ingest.
type submitRequest struct {
	IDs      []int64 `json:"ids"`
	Priority string  `json:"priority"`
}

// submitResponse is the answer to POST /ingest.
type submitResponse struct {
	RequestID string `json:"request_id"`
}

// HealthResponse represents server health
type HealthResponse struct {
	Status      string         `json:"status"`
	QueueLength int            `json:"queue_length"`
	Lanes       map[string]int `json:"lanes"`
}

// New creates a new client for the server at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Submit sends identifiers with a priority and returns the request id
func (c *Client) Submit(ctx context.Context, ids []int64, priority string) (string, error) {
	body, err := json.Marshal(submitRequest{IDs: ids, Priority: priority})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/ingest", body, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == "" {
		return "", errors.New("server returned no request_id")
	}
	return resp.RequestID, nil
}

// Status fetches the current state of a request
func (c *Client) Status(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Health checks if the server is reachable and healthy
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(bodyBytes, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
