package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jlindqvist/chorogram/pkg/observability"
)

// ErrStatusNotFound is returned by [Client.Get] for 404 responses.
// Missing topology files are a configuration problem, not a transient
// failure, so they are never retried.
var ErrStatusNotFound = errors.New("resource not found")

// Client wraps an http.Client with retry classification for topology
// downloads. 5xx responses and transport errors are retried with backoff;
// 4xx responses fail immediately.
type Client struct {
	http     *http.Client
	attempts int
	delay    time.Duration
}

// NewClient creates a client with the given request timeout.
// A zero timeout defaults to 30 seconds.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		attempts: 3,
		delay:    time.Second,
	}
}

// Get fetches url and returns the response body.
// Transient failures are retried up to three times with exponential backoff.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := Retry(ctx, c.attempts, c.delay, func() error {
		data, err := c.getOnce(ctx, url)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	return body, err
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	observability.HTTP().OnRequest(ctx, http.MethodGet, req.URL.Host, req.URL.Path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, http.MethodGet, req.URL.Host, req.URL.Path, err)
		// Transport errors (DNS, connection reset, timeout) are transient.
		return nil, Retryable(err)
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, http.MethodGet, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, url)
	case resp.StatusCode >= 500:
		return nil, Retryable(fmt.Errorf("server error %d for %s", resp.StatusCode, url))
	default:
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
}
