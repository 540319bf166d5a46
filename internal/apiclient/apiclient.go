package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	apiPrefix        = "/api"
	maxErrorBodySize = 64 << 10
)

// APIClient handles all communication with the file backend.
type APIClient struct {
	BaseURL    string
	HttpClient *http.Client
}

// New creates a client for the backend at baseURL. Requests are traced
// through the global OpenTelemetry provider.
func New(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HttpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// do is the single helper every backend call goes through.
func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create API request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend unavailable: %w", err)
	}
	return resp, nil
}

// checkResponse turns a non-2xx response into an *APIError and closes its body.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(bodyBytes, resp.StatusCode)}
}

// errorDetail extracts the backend's {"detail": ...} message, falling back to
// the raw body and then the status text.
func errorDetail(body []byte, status int) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return http.StatusText(status)
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cannot decode backend response: %w", err)
	}
	return nil
}

// Status probes the backend root endpoint.
func (c *APIClient) Status(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return err
	}
	if err := checkResponse(resp); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
