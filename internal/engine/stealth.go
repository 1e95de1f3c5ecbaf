package engine

import (
	"context"
	"io"
	"net/http"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth types and functions for engine consumers.
type (
	BrowserClient = stealth.BrowserClient
	RetryConfig   = stealth.RetryConfig
)

var DefaultRetryConfig = stealth.DefaultRetryConfig

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool  { return stealth.IsRetryableStatus(code) }

func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// NewBrowserClient returns a Chrome-fingerprinted client with the given timeout in seconds.
func NewBrowserClient(timeoutSeconds int) (*BrowserClient, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 15
	}
	return stealth.NewClient(stealth.WithTimeout(timeoutSeconds))
}

// BrowserDo runs a BrowserClient request bounded by ctx.
// Returns body bytes, HTTP status code, and any error.
func BrowserDo(ctx context.Context, bc *BrowserClient, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error) {
	return doWithContext(ctx, func() ([]byte, int, error) {
		data, _, status, err := bc.Do(method, url, headers, body)
		return data, status, err
	})
}

type browserResult struct {
	data   []byte
	status int
	err    error
}

// doWithContext returns as soon as ctx is done; the abandoned request
// finishes on its own under the client timeout.
func doWithContext(ctx context.Context, fn func() ([]byte, int, error)) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	done := make(chan browserResult, 1)
	go func() {
		data, status, err := fn()
		done <- browserResult{data: data, status: status, err: err}
	}()
	select {
	case r := <-done:
		return r.data, r.status, r.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

// WatchPageHeaders returns Chrome headers with English, consent-free defaults.
func WatchPageHeaders() map[string]string {
	h := make(map[string]string, 8)
	for k, v := range ChromeHeaders() {
		h[strings.ToLower(k)] = v
	}
	if h["user-agent"] == "" {
		h["user-agent"] = UserAgentChrome
	}
	if h["accept"] == "" {
		h["accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	}
	h["accept-language"] = "en-US,en;q=0.9"
	h["cookie"] = "CONSENT=YES+1"
	return h
}
