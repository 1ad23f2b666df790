// Package fetch implements an HTTP client with per-attempt timeouts and
// bounded retries for 429, 5xx and network failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts is the total number of attempts, including the first.
	DefaultMaxAttempts = 2

	rateLimitStep = time.Second
	retryStep     = 500 * time.Millisecond

	maxErrorBody = 512
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config holds Client configuration.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
	UserAgent   string
	Sleep       Sleeper
	Logger      *zap.Logger
}

// Client issues GET requests with retry and backoff.
type Client struct {
	timeout     time.Duration
	maxAttempts int
	httpClient  *http.Client
	userAgent   string
	sleep       Sleeper
	logger      *zap.Logger
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "polymarket-lens/1.0"
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		httpClient:  cfg.HTTPClient,
		userAgent:   cfg.UserAgent,
		sleep:       cfg.Sleep,
		logger:      cfg.Logger,
	}
}

// Get calls Do with the configured attempt count.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, url, c.maxAttempts)
}

// Do issues a GET to url, making at most maxAttempts attempts. 2xx and
// non-429 4xx responses are returned as-is. 429, 5xx and transport failures
// are retried after a backoff; when attempts run out a *NetworkError is
// returned. The returned body must be closed, which also releases the
// attempt's timeout.
func (c *Client) Do(ctx context.Context, url string, maxAttempts int) (*http.Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastErr    error
		lastClass  ErrorClass
		lastStatus int
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, url)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request %s: %w", url, ctx.Err())
			}
			lastErr, lastClass, lastStatus = err, ErrorClassNetwork, 0
			wait = time.Duration(attempt+1) * retryStep

		default:
			class, failed := classifyStatus(resp.StatusCode)
			if !failed || !shouldRetry(class) {
				RequestsTotal.WithLabelValues(outcomeLabel(class, failed)).Inc()
				return resp, nil
			}

			lastErr, lastClass, lastStatus = nil, class, resp.StatusCode
			if class == ErrorClassRateLimit {
				wait = retryAfter(resp.Header.Get("Retry-After"), attempt)
			} else {
				wait = time.Duration(attempt+1) * retryStep
			}
			drain(resp)
		}

		RequestsTotal.WithLabelValues(string(lastClass)).Inc()

		if attempt == maxAttempts-1 {
			break
		}

		RetriesTotal.WithLabelValues(string(lastClass)).Inc()
		BackoffSeconds.WithLabelValues(string(lastClass)).Observe(wait.Seconds())
		c.logger.Debug("fetch-retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.String("error-class", string(lastClass)),
			zap.Int("status", lastStatus),
			zap.Duration("backoff", wait),
			zap.Error(lastErr))

		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("request %s: %w", url, err)
		}
	}

	ExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	c.logger.Warn("fetch-retry-exhausted",
		zap.String("url", url),
		zap.Int("attempts", maxAttempts),
		zap.String("error-class", string(lastClass)),
		zap.Int("status", lastStatus),
		zap.Error(lastErr))

	return nil, &NetworkError{
		URL:        url,
		Attempts:   maxAttempts,
		Class:      lastClass,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// attempt performs one request bounded by the per-attempt timeout. On
// success the timeout is released when the body is closed.
func (c *Client) attempt(ctx context.Context, url string) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	RequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("do request: %w", err)
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// GetJSON fetches url and decodes a 2xx body into v. A non-retried 4xx
// becomes a *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("read response %s: %w", url, err)
		}
		return fmt.Errorf("decode response %s: %w: %v", url, ErrMalformedPayload, err)
	}
	return nil
}

// retryAfter parses a Retry-After header in seconds, falling back to
// (attempt+1) seconds.
func retryAfter(header string, attempt int) time.Duration {
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(header); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}
	return time.Duration(attempt+1) * rateLimitStep
}

func outcomeLabel(class ErrorClass, failed bool) string {
	if !failed {
		return "ok"
	}
	return string(class)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
