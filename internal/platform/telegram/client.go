package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

const (
	// DefaultAPIURL is the public Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"

	// DefaultRateLimit is the sustained outbound call rate.
	DefaultRateLimit = 25

	// maxResponseSize caps a JSON response body.
	maxResponseSize = 8 << 20
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Token is the bot token issued by BotFather. Required.
	Token string
	// APIURL overrides DefaultAPIURL, e.g. for a local Bot API server.
	APIURL string
	// HTTPClient is used for all requests. If nil, a client without a
	// global timeout is used; GetUpdates sets its own deadline.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// RateLimit is outbound calls per second. Zero selects DefaultRateLimit.
	RateLimit float64
	// Metrics records call latency. May be nil.
	Metrics *metric.Registry
}

// Client calls the Telegram Bot API.
type Client struct {
	baseURL    string
	fileURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	metrics    *metric.Registry
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("telegram: invalid api url %q: %w", apiURL, err)
	}
	apiURL = strings.TrimRight(apiURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}

	return &Client{
		baseURL:    apiURL + "/bot" + cfg.Token + "/",
		fileURL:    apiURL + "/file/bot" + cfg.Token + "/",
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(limit), max(1, int(limit))),
		metrics:    cfg.Metrics,
	}, nil
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUpdates long-polls for message updates with id >= offset. It blocks
// for up to timeout when nothing is pending.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{}
	if offset != 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}
	params.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	params.Set("allowed_updates", `["message"]`)

	req, err := c.newFormRequest(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := c.do(req, "getUpdates", &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts text to chatID. parseMode may be empty.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) (*Message, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	if parseMode != "" {
		params.Set("parse_mode", parseMode)
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendDocument uploads r as a document.
func (c *Client) SendDocument(ctx context.Context, chatID int64, name string, r io.Reader) (*Message, error) {
	return c.sendMedia(ctx, "sendDocument", "document", chatID, name, r)
}

// SendPhoto uploads r as a photo.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, name string, r io.Reader) (*Message, error) {
	return c.sendMedia(ctx, "sendPhoto", "photo", chatID, name, r)
}

// SendVideo uploads r as a video.
func (c *Client) SendVideo(ctx context.Context, chatID int64, name string, r io.Reader) (*Message, error) {
	return c.sendMedia(ctx, "sendVideo", "video", chatID, name, r)
}

// SendAnimation uploads r as an animation.
func (c *Client) SendAnimation(ctx context.Context, chatID int64, name string, r io.Reader) (*Message, error) {
	return c.sendMedia(ctx, "sendAnimation", "animation", chatID, name, r)
}

// SendAudio uploads r as audio.
func (c *Client) SendAudio(ctx context.Context, chatID int64, name string, r io.Reader) (*Message, error) {
	return c.sendMedia(ctx, "sendAudio", "audio", chatID, name, r)
}

// DeleteMessage deletes a message. Bots can only delete their own
// messages in private chats and only within 48 hours.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.FormatInt(messageID, 10))

	var ok bool
	return c.call(ctx, "deleteMessage", params, &ok)
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	params := url.Values{}
	params.Set("file_id", fileID)

	var f File
	if err := c.call(ctx, "getFile", params, &f); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("telegram: getFile: no file path for %s", fileID)
	}
	return &f, nil
}

// Download streams the contents of a path returned by GetFile. The
// caller must close the reader.
func (c *Client) Download(ctx context.Context, filePath string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL+filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create download request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPIRequest("download", "error", time.Since(start))
		return nil, fmt.Errorf("telegram: download: %w", stripURL(err))
	}
	c.metrics.ObserveAPIRequest("download", strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Method: "download", Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
	}
	return resp.Body, nil
}

// call performs a rate-limited form-encoded request.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := c.newFormRequest(ctx, method, params)
	if err != nil {
		return err
	}
	return c.do(req, method, out)
}

func (c *Client) newFormRequest(ctx context.Context, method string, params url.Values) (*http.Request, error) {
	var body io.Reader
	if params != nil {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, body)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create %s request", method)
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

// sendMedia streams r as a multipart upload in field.
func (c *Client) sendMedia(ctx context.Context, method, field string, chatID int64, name string, r io.Reader) (*Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, chatID, field, name, r)
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("telegram: failed to create %s request", method)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var msg Message
	if err := c.do(req, method, &msg); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &msg, nil
}

func writeMultipart(mw *multipart.Writer, chatID int64, field, name string, r io.Reader) error {
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// do sends req and decodes the response envelope into out.
func (c *Client) do(req *http.Request, method string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPIRequest(method, "error", time.Since(start))
		return fmt.Errorf("telegram: %s: %w", method, stripURL(err))
	}
	defer resp.Body.Close()
	c.metrics.ObserveAPIRequest(method, strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("telegram: %s: failed to read response: %w", method, err)
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram: %s: unexpected %d response", method, resp.StatusCode)
	}

	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		c.logger.Debug("telegram call failed", "method", method, "code", apiErr.Code, "description", apiErr.Description)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram: %s: failed to parse result: %w", method, err)
	}
	return nil
}

// stripURL drops the request URL from transport errors; it embeds the
// bot token.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
