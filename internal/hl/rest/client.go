package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultAttempts = 4
	defaultBackoff  = 250 * time.Millisecond
)

type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// New builds an /info client. requestsPerSecond <= 0 disables throttling.
func New(baseURL string, timeout time.Duration, requestsPerSecond float64, log *zap.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		limiter:  limiter,
		log:      log,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

func (c *Client) InfoAny(ctx context.Context, req interface{}) (any, error) {
	var data any
	err := c.retry(ctx, func() error {
		data = nil
		return c.post(ctx, "/info", req, &data)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// retry backs off exponentially on rate limiting, server errors and transport failures.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	backoff := c.backoff
	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if attempt == c.attempts-1 {
			break
		}
		c.log.Debug("retrying info request",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return fmt.Errorf("retry failed: %w", err)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) post(ctx context.Context, path string, req interface{}, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.Debug("info request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
