// Package fetch retrieves raw source content over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves the raw bytes of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-OK HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Client fetches URLs with a shared HTTP client and per-request timeout.
type Client struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Client with the given HTTP client.
func New(client HTTPClient) *Client {
	return &Client{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads the content at url.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "feedwatch/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// limited wraps a Fetcher with a weighted semaphore so that at most n
// fetches are in flight at once.
type limited struct {
	inner Fetcher
	sem   *semaphore.Weighted
}

// Limit bounds the number of concurrent Fetch calls on f. The source count
// therefore does not translate directly into open network connections.
func Limit(f Fetcher, n int64) Fetcher {
	return &limited{inner: f, sem: semaphore.NewWeighted(n)}
}

func (l *limited) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire fetch slot: %w", err)
	}
	defer l.sem.Release(1)
	return l.inner.Fetch(ctx, url)
}
