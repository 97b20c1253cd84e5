package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP forwards each identifier to a downstream service as a JSON POST.
type HTTP struct {
	url        string
	httpClient *http.Client
}

// unitRequest is the body sent for one identifier.
type unitRequest struct {
	ID int64 `json:"id"`
}

// NewHTTP creates a processor posting to url. A zero timeout falls back to 10s.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Process posts id and treats any non-2xx answer as a failure.
func (h *HTTP) Process(ctx context.Context, id int64) error {
	body, err := json.Marshal(unitRequest{ID: id})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to process id %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("process id %d failed with status %d: %s", id, resp.StatusCode, string(bodyBytes))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
