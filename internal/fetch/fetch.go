// Package fetch downloads source images over HTTP. The access-denied versus
// general-failure distinction matters: the orchestration skips URLs whose
// origin refuses to serve them and aborts the run on anything else.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrAccessDenied is returned when the origin refuses to serve the
	// asset (HTTP 401/403 class).
	ErrAccessDenied = errors.New("download access denied")

	// ErrDownloadFailed is returned for every other download failure.
	ErrDownloadFailed = errors.New("download failed")
)

// Download is one fetched source image.
type Download struct {
	Bytes       []byte
	ContentType string
}

// Downloader fetches source assets.
type Downloader interface {
	Fetch(ctx context.Context, rawURL string) (*Download, error)
}

// HTTPDownloader fetches assets over plain HTTP(S).
type HTTPDownloader struct {
	httpClient *http.Client
	maxBytes   int64
}

// Option configures an HTTPDownloader.
type Option func(*HTTPDownloader)

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(d *HTTPDownloader) { d.httpClient = client }
}

// WithMaxBytes caps the downloaded body size.
func WithMaxBytes(n int64) Option {
	return func(d *HTTPDownloader) { d.maxBytes = n }
}

// NewHTTPDownloader creates a downloader with a 60s request timeout and a
// 64MB body cap by default.
func NewHTTPDownloader(opts ...Option) *HTTPDownloader {
	d := &HTTPDownloader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   64 << 20,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads rawURL. Responses in the 401/403 class map to
// ErrAccessDenied; everything else that goes wrong maps to ErrDownloadFailed.
func (d *HTTPDownloader) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: not an absolute http/https URL: %q", ErrDownloadFailed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrDownloadFailed, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d for %s", ErrAccessDenied, resp.StatusCode, rawURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d for %s", ErrDownloadFailed, resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrDownloadFailed, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrDownloadFailed, d.maxBytes)
	}

	return &Download{
		Bytes:       data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
