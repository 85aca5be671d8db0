package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func newTestFetcher() *HTTPImageFetcher {
	return NewHTTPImageFetcher(5 * time.Second).WithRetryDelay(10 * time.Millisecond)
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int   // Expected number of requests
		expectError   bool
		errorContains string
		notFound      bool
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "404 maps to not found without retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			notFound:      true,
		},
		{
			name:          "4xx after 5xx stops retrying",
			responses:     []int{500, 403},
			expectRetries: 2,
			expectError:   true,
			errorContains: "client error: status code 403",
		},
		{
			name:          "All 5xx errors exhaust attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
		{
			name:          "400 is not retried",
			responses:     []int{400},
			expectRetries: 1,
			expectError:   true,
			errorContains: "client error: status code 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestCount int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(atomic.AddInt32(&requestCount, 1)) - 1
				if n >= len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				statusCode := tt.responses[n]
				if statusCode == 200 {
					w.Header().Set("Content-Type", "image/png")
					w.Write(pngSignature)
					return
				}
				w.WriteHeader(statusCode)
				fmt.Fprintf(w, "Error %d", statusCode)
			}))
			defer server.Close()

			data, err := newTestFetcher().FetchImage(context.Background(), server.URL, 0)

			if got := int(atomic.LoadInt32(&requestCount)); got != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, got)
			}

			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error, but got none")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				if tt.notFound && !errors.Is(err, ErrNotFound) {
					t.Errorf("Expected ErrNotFound, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if !bytes.Equal(data, pngSignature) {
				t.Errorf("Unexpected body %v", data)
			}
		})
	}
}

func TestHTTPImageFetcher_NetworkError_Retry(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) < 3 {
			// Drop the connection to simulate a transport failure
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Write(pngSignature)
	}))
	defer server.Close()

	fetcher := NewHTTPImageFetcher(5 * time.Second).WithRetryDelay(50 * time.Millisecond)

	start := time.Now()
	_, err := fetcher.FetchImage(context.Background(), server.URL, 0)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success after retries, got error: %s", err.Error())
	}
	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	// Backoff is 1x then 2x the base delay
	if duration < 150*time.Millisecond {
		t.Errorf("Expected at least 150ms of backoff, took %v", duration)
	}
}

func TestHTTPImageFetcher_SizeLimit(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 2048)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked" {
			// Flushing before writing forces chunked encoding with no Content-Length
			w.(http.Flusher).Flush()
		}
		w.Write(body)
	}))
	defer server.Close()

	for _, path := range []string{"/sized", "/chunked"} {
		t.Run(path, func(t *testing.T) {
			_, err := newTestFetcher().FetchImage(context.Background(), server.URL+path, 1024)
			if !errors.Is(err, ErrTooLarge) {
				t.Errorf("Expected ErrTooLarge, got %v", err)
			}

			data, err := newTestFetcher().FetchImage(context.Background(), server.URL+path, 4096)
			if err != nil {
				t.Fatal(err)
			}
			if len(data) != len(body) {
				t.Errorf("Expected %d bytes, got %d", len(body), len(data))
			}
		})
	}
}

func TestHTTPImageFetcher_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewHTTPImageFetcher(5 * time.Second).WithRetryDelay(time.Hour)
	if _, err := fetcher.FetchImage(ctx, server.URL, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, bytes.Repeat([]byte{1}, 100), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewLocalStorage()

	size, err := s.Stat(path)
	if err != nil || size != 100 {
		t.Errorf("Stat = (%d, %v), want (100, nil)", size, err)
	}

	if _, err := s.Stat(filepath.Join(dir, "missing.png")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing file, got %v", err)
	}
	if _, err := s.Stat(dir); err == nil {
		t.Error("Expected error for directory")
	}

	if _, err := s.ReadFile(context.Background(), path, 99); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
	data, err := s.ReadFile(context.Background(), path, 100)
	if err != nil || len(data) != 100 {
		t.Errorf("ReadFile = (%d bytes, %v)", len(data), err)
	}
}
