package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is the default HTTP collaborator, a thin wrapper over
// net/http.Client with a fixed per-request timeout, grounded on the same
// client-construction pattern used for host registration: a short-lived
// *http.Client built once and reused, Content-Type/Authorization headers set
// explicitly rather than delegated to a higher-level HTTP library.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient returns an HTTPClient whose requests fail after timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Post implements HTTP.
func (h *HTTPClient) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending dispatcher request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading dispatcher response: %w", err)
	}

	return respBody, nil
}
