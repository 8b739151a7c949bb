package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProbeClient queries the ops HTTP server.
type ProbeClient struct {
	baseURL string
	client  *http.Client
}

// ProbeResult is the decoded body of /health or /ready.
type ProbeResult struct {
	Path       string `json:"path" yaml:"path"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
	Code       string `json:"code,omitempty" yaml:"code,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
}

// OK reports a 200 response.
func (r ProbeResult) OK() bool {
	return r.StatusCode == http.StatusOK
}

// NewProbeClient creates a client for addr, with or without a scheme.
func NewProbeClient(addr string) *ProbeClient {
	baseURL := addr
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &ProbeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Probe performs GET path and decodes the JSON body.
func (c *ProbeClient) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	result := &ProbeResult{}
	if len(body) > 0 {
		// Non-JSON bodies leave only the status code set.
		_ = json.Unmarshal(body, result)
	}
	result.Path = path
	result.StatusCode = resp.StatusCode
	return result, nil
}
