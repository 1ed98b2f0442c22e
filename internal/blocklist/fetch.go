package blocklist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotModified reports that the source content is unchanged since the
// last successful fetch (conditional request matched the cached ETag).
var ErrNotModified = errors.New("source not modified")

// Fetcher is the fetch collaborator boundary. Implementations return the
// raw body stream and the caching token to remember for the next round.
// Any failure mode (timeout, non-success status, unreachable host) is
// surfaced as an error and treated uniformly by the manager as "no
// domains available this round".
type Fetcher interface {
	Fetch(ctx context.Context, url, etag string) (body io.ReadCloser, newETag string, err error)
}

const defaultFetchTimeout = 60 * time.Second

// HTTPFetcher fetches blocklist content over HTTP with conditional
// requests.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher with the given timeout (zero means the
// 60s default).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "DomainGuard/1.0",
	}
}

// Fetch performs a GET, conditional on etag when one is known. The caller
// owns closing the returned body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, etag string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		resp.Body.Close()
		return nil, etag, ErrNotModified
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, "", fmt.Errorf("fetching %s: HTTP %s", url, resp.Status)
	}

	return resp.Body, resp.Header.Get("ETag"), nil
}
