// Package httpx is the shared HTTP plumbing for the remote lookups: per-call
// timeouts and bounded retries on transient failures.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/lestrrat-go/backoff/v2"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 300 * time.Millisecond
	maxBodyBytes      = 4 << 20
	userAgent         = "placescout/1.0 (+https://github.com/ZanzyTHEbar/placescout-genkit)"
)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Retryable reports whether a retry may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client performs GET requests with a per-attempt timeout and bounded retries.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout bounds each attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithRetries sets how many times a transient failure is retried and the delay between attempts.
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client.
func New(options ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		userAgent:  userAgent,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(c)
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Millisecond
	}
	return c
}

// Get fetches rawURL with the query parameters in params and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	if err := ctx.Err(); err != nil {
		return nil, errbuilder.WrapIfContextDone(ctx, err)
	}

	policy := backoff.Constant(
		backoff.WithInterval(c.retryDelay),
		backoff.WithMaxRetries(c.maxRetries+1),
	)
	b := policy.Start(ctx)

	var lastErr error
	attempt := 0
	for backoff.Continue(b) {
		attempt++
		body, err := c.get(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errbuilder.WrapIfContextDone(ctx, ctxErr)
		}
		if !retryable(err) || attempt > c.maxRetries {
			break
		}
		c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt, "error", err)
	}

	if lastErr == nil {
		if err := ctx.Err(); err != nil {
			return nil, errbuilder.WrapIfContextDone(ctx, err)
		}
		lastErr = errors.New("request was not attempted")
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// Transport failures, including a per-attempt timeout.
	return true
}
