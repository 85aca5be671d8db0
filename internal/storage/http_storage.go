package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ImageFetcher downloads remote images as raw bytes.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string, maxBytes int64) ([]byte, error)
}

const fetchAttempts = 3

// HTTPImageFetcher implements ImageFetcher with bounded retries
type HTTPImageFetcher struct {
	client     *http.Client
	retryDelay time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. timeout bounds each attempt.
func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	transport := &http.Transport{
		// Connection pooling sized for a handful of concurrent downloads
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		retryDelay: time.Second,
	}
}

// WithRetryDelay sets the base delay between attempts. Attempt n waits n*delay.
func (h *HTTPImageFetcher) WithRetryDelay(delay time.Duration) *HTTPImageFetcher {
	h.retryDelay = delay
	return h
}

// FetchImage downloads imageURL. 5xx responses and transport errors are
// retried up to three attempts; 4xx responses are not. 404 and 410 map to
// ErrNotFound and bodies larger than maxBytes to ErrTooLarge.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string, maxBytes int64) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.retryDelay):
			}
		}

		data, retry, err := h.fetchOnce(ctx, imageURL, maxBytes)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string, maxBytes int64) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", "image-quality-engine/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, fmt.Errorf("%w: status code %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, false, fmt.Errorf("%w: content length %d exceeds %d", ErrTooLarge, resp.ContentLength, maxBytes)
	}

	data, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}
