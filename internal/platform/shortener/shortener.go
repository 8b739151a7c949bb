// Package shortener calls an api-key URL shortener of the
// `GET <endpoint>?api=<key>&url=<long>` family.
package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultEndpoint is the shortener the bot has always used.
	DefaultEndpoint = "https://shortner.in/api"

	// DefaultTimeout bounds one shorten call.
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 64 << 10
)

// ErrEmptyResult is returned when the service answers without a short URL.
var ErrEmptyResult = errors.New("shortener: empty shortenedUrl")

// Config holds configuration for creating a Client.
type Config struct {
	// Endpoint overrides DefaultEndpoint.
	Endpoint string
	// APIKey authenticates against the service. Empty disables shortening.
	APIKey string
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
	// HTTPClient is used for all requests. If nil, one with Timeout is built.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client shortens URLs.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("shortener: invalid endpoint %q: %w", endpoint, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Shorten returns the short form of longURL. Without an API key it
// returns longURL unchanged. Any transport, status or decoding failure
// and an empty result are errors.
func (c *Client) Shorten(ctx context.Context, longURL string) (string, error) {
	if !c.Enabled() {
		return longURL, nil
	}

	query := url.Values{}
	query.Set("api", c.apiKey)
	query.Set("url", longURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("shortener: failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the api key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("shortener: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("shortener: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shortener: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Status       string `json:"status"`
		ShortenedURL string `json:"shortenedUrl"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("shortener: failed to parse response: %w", err)
	}
	if result.ShortenedURL == "" {
		return "", ErrEmptyResult
	}

	c.logger.Debug("url shortened", "short", result.ShortenedURL)
	return result.ShortenedURL, nil
}
