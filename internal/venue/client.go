// Package venue talks to the prediction-market venue's HTTP APIs: a
// plain GET client with retries, a Redis read-through cache, and the
// paginated collection fetcher the source adapters are built on.
package venue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atmx/portfolio-engine/internal/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	baseDelay      = 250 * time.Millisecond
	maxDelay       = 5 * time.Second
	maxBodyBytes   = 32 << 20
)

// Getter fetches one raw response body.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) ([]byte, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string        // sent as a bearer token when set
	Timeout    time.Duration // per attempt; 0 → 15s
	MaxRetries int           // extra attempts on ErrUnavailable
	BaseDelay  time.Duration // first backoff step; 0 → 250ms
	HTTPClient *http.Client  // optional; overrides Timeout
	Logger     *slog.Logger
}

// Client is a venue HTTP client. Safe for concurrent use; the connection
// pool belongs to the underlying http.Client.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	baseDelay  time.Duration
	http       *http.Client
	log        *slog.Logger
}

// NewClient creates a venue client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = baseDelay
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: max(cfg.MaxRetries, 0),
		baseDelay:  delay,
		http:       hc,
		log:        log.With("component", "venue"),
	}
}

// Get performs a GET with retries on transient failures.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var lastErr *UpstreamError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(c.baseDelay, attempt-1)
			c.log.Debug("retrying venue request", "path", path, "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return nil, &UpstreamError{Path: path, Err: ErrUnavailable, Cause: ctx.Err()}
			case <-time.After(wait):
			}
		}

		body, err := c.do(ctx, path, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !err.retryable() || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, *UpstreamError) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &UpstreamError{Path: path, Err: ErrMalformed, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(path, "error").Inc()
		return nil, &UpstreamError{Path: path, Err: ErrUnavailable, Cause: err}
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode, Err: ErrUnauthorized}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode, Err: ErrUnavailable}
	case resp.StatusCode >= 300:
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode, Err: ErrMalformed,
			Cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode, Err: ErrUnavailable, Cause: err}
	}
	return body, nil
}

// backoff returns base * 2^retry, capped at maxDelay.
func backoff(base time.Duration, retry int) time.Duration {
	if retry > 20 {
		return maxDelay
	}
	d := base * time.Duration(1<<retry)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// IsNotFound reports whether err is a venue 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
