package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/pkg/composables"
)

const (
	DefaultURL     = "https://organisaties.overheid.nl/archive/exportOO.xml"
	DefaultTimeout = 120 * time.Second

	maxDocumentBytes = 512 << 20
)

// Fetcher returns the raw registry export.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type Client struct {
	url     string
	http    *http.Client
	retries uint64
	backoff time.Duration
}

type ClientOption func(*Client)

func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.retries = uint64(n)
	}
}

func WithBackoff(base time.Duration) ClientOption {
	return func(c *Client) { c.backoff = base }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(url string, timeout time.Duration, opts ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		backoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) URL() string { return c.url }

// Fetch downloads the export. Network errors and 5xx responses are retried with
// exponential backoff; any final failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	var body []byte
	attempt := 0
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		data, err := c.fetchOnce(ctx)
		if err != nil {
			if logger := composables.UseLogger(ctx); logger != nil {
				logger.WithFields(logrus.Fields{
					"url":     c.url,
					"attempt": attempt,
					"error":   err.Error(),
				}).Warn("registry fetch failed")
			}
			if ferr, ok := err.(*FetchError); ok && ferr.StatusCode >= 400 && ferr.StatusCode < 500 {
				return err
			}
			return retry.RetryableError(err)
		}
		body = data
		return nil
	})
	if err != nil {
		if _, ok := err.(*FetchError); ok {
			return nil, err
		}
		return nil, &FetchError{URL: c.url, Err: err}
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: c.url, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, &FetchError{URL: c.url, Err: err}
	}
	if len(data) > maxDocumentBytes {
		return nil, &FetchError{URL: c.url, Err: fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)}
	}
	return data, nil
}
