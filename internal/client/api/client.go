// Package api is the HTTP client for the cipherdrop server. Every call maps a
// server error body back onto the matching common sentinel, so callers can
// use errors.Is against common.ErrExpired and friends.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
)

const maxErrorBody = 64 << 10

// retryLogger adapts logging.Logger to retryablehttp.LeveledLogger.
// Debug and Info chatter from the retry loop is dropped.
type retryLogger struct {
	log logging.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error(context.Background(), msg, keysAndValues...)
}

func (l retryLogger) Info(string, ...interface{}) {}

func (l retryLogger) Debug(string, ...interface{}) {}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn(context.Background(), msg, keysAndValues...)
}

type Client struct {
	http     *retryablehttp.Client
	baseURL  string
	token    string
	progress Progress
}

type Option func(*retryablehttp.Client, *Client)

// WithToken sets the bearer token sent on drive calls.
func WithToken(token string) Option {
	return func(_ *retryablehttp.Client, c *Client) { c.token = token }
}

// WithRetries bounds retries of connection errors and 5xx responses.
func WithRetries(n int) Option {
	return func(rc *retryablehttp.Client, _ *Client) { rc.RetryMax = n }
}

func WithLogger(l logging.Logger) Option {
	return func(rc *retryablehttp.Client, _ *Client) { rc.Logger = retryLogger{log: l} }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(rc *retryablehttp.Client, _ *Client) { rc.HTTPClient = hc }
}

func WithBackoff(min, max time.Duration) Option {
	return func(rc *retryablehttp.Client, _ *Client) {
		rc.RetryWaitMin = min
		rc.RetryWaitMax = max
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = retryLogger{log: logging.Nop()}
	// hand the last response back so its error body can be decoded
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{http: rc, baseURL: strings.TrimSuffix(baseURL, "/")}
	for _, o := range opts {
		o(rc, c)
	}
	return c
}

// BaseURL is the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if c.token != "" && strings.HasPrefix(path, "/drive") {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and returns the response when its status is 2xx. Otherwise
// the body is decoded into an error and the response is closed.
func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func (c *Client) doJSON(req *retryablehttp.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func jsonBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeError turns an error response into a *common.Error. Known codes keep
// the server's message but compare equal to the local sentinel.
func decodeError(resp *http.Response) error {
	var body ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return &common.Error{
			Kind:    kindForStatus(resp.StatusCode),
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	if known := common.Lookup(body.Code); known != nil {
		msg := body.Error
		if msg == "" {
			msg = known.Message
		}
		return &common.Error{Kind: known.Kind, Code: known.Code, Message: msg}
	}
	return &common.Error{Kind: kindForStatus(resp.StatusCode), Code: body.Code, Message: body.Error}
}

func kindForStatus(status int) common.Kind {
	switch status {
	case http.StatusBadRequest:
		return common.KindValidation
	case http.StatusUnauthorized:
		return common.KindAuthentication
	case http.StatusNotFound:
		return common.KindNotFound
	case http.StatusConflict:
		return common.KindConflict
	case http.StatusGone:
		return common.KindGone
	case http.StatusRequestEntityTooLarge:
		return common.KindQuotaExceeded
	}
	return common.KindUnexpected
}

// Health checks that the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

