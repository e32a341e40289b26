// Package network provides the shared HTTP transport layer: a pre-configured client
// plus a retrying fetcher with header injection and single-flight auth refresh.
package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/songdl-cli/songdl/constant"
	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/singleflight"
)

// HeaderSource supplies authenticated request headers and knows how to refresh them
// after the remote end rejects them. Implemented by the provider session.
type HeaderSource interface {
	Headers() map[string]string
	Refresh() error
}

// Options carries optional per-request parameters.
type Options struct {
	// Params are appended to the request URL as query parameters.
	Params map[string]string
	// Headers override or extend the fetcher's default headers.
	Headers map[string]string
}

// Fetcher performs HTTP calls with a bounded retry budget. Each attempt re-reads headers
// from the source, so a refresh performed by a sibling worker is picked up automatically.
// An auth rejection (401/403) triggers a single-flight refresh shared across workers,
// followed by exactly one retry of the failed call.
type Fetcher struct {
	client     *http.Client
	headers    HeaderSource
	maxRetries int
	refresh    singleflight.Group
}

// NewFetcher constructs a Fetcher bound to the shared client and global network configuration.
// The header source may be nil for unauthenticated endpoints.
func NewFetcher(headers HeaderSource) *Fetcher {
	client := Client
	if secs := viper.GetInt(key.NetworkTimeoutSeconds); secs > 0 {
		clone := *Client
		clone.Timeout = time.Duration(secs) * time.Second
		client = &clone
	}

	retries := viper.GetInt(key.NetworkMaxRetries)
	if retries < 1 {
		retries = 1
	}

	return &Fetcher{
		client:     client,
		headers:    headers,
		maxRetries: retries,
	}
}

// Get performs a GET request. The returned response body is open; the caller owns closing it.
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts *Options) (*http.Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, "", opts)
}

// Post performs a form POST request. The returned response body is open; the caller owns closing it.
func (f *Fetcher) Post(ctx context.Context, rawURL string, form url.Values, opts *Options) (*http.Response, error) {
	return f.do(ctx, http.MethodPost, rawURL, form.Encode(), opts)
}

// Probe performs a lightweight reachability check against a URL without downloading the body.
// It reports whether the resource answered 2xx and the declared content length (-1 when unknown).
func (f *Fetcher) Probe(ctx context.Context, rawURL string) (ok bool, contentLength int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, -1, err
	}
	f.applyHeaders(req, nil)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, -1, err
	}
	defer drainClose(resp.Body)

	// Some CDNs reject HEAD outright; fall back to a zero-range GET.
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return false, -1, err
		}
		f.applyHeaders(req, nil)
		req.Header.Set("Range", "bytes=0-0")

		rangeResp, rangeErr := f.client.Do(req)
		if rangeErr != nil {
			return false, -1, rangeErr
		}
		defer drainClose(rangeResp.Body)

		ok = rangeResp.StatusCode >= 200 && rangeResp.StatusCode < 300
		return ok, contentLengthOf(rangeResp), nil
	}

	ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	return ok, contentLengthOf(resp), nil
}

func contentLengthOf(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		// "bytes 0-0/12345"
		if idx := strings.LastIndex(cr, "/"); idx >= 0 {
			var total int64
			if _, err := fmt.Sscanf(cr[idx+1:], "%d", &total); err == nil {
				return total
			}
		}
	}
	return resp.ContentLength
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1024))
	_ = body.Close()
}

func (f *Fetcher) do(ctx context.Context, method, rawURL, body string, opts *Options) (*http.Response, error) {
	var (
		lastResp *http.Response
		lastErr  error
	)

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		resp, err := f.attempt(ctx, method, rawURL, body, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Errorf("network.%s %s (attempt %d/%d): %v", strings.ToLower(method), rawURL, attempt+1, f.maxRetries, err)
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			drainClose(resp.Body)
			if refreshErr := f.refreshHeaders(); refreshErr != nil {
				return nil, fmt.Errorf("auth refresh after %d: %w", resp.StatusCode, refreshErr)
			}
			resp, err = f.attempt(ctx, method, rawURL, body, opts)
			if err != nil {
				lastErr = err
				continue
			}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		// Keep the most recent failing response so the caller can inspect it
		// once the retry budget is exhausted.
		if lastResp != nil {
			drainClose(lastResp.Body)
		}
		lastResp = resp
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, method, rawURL, body string, opts *Options) (*http.Response, error) {
	target := rawURL
	if opts != nil && len(opts.Params) > 0 {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		query := parsed.Query()
		for k, v := range opts.Params {
			query.Set(k, v)
		}
		parsed.RawQuery = query.Encode()
		target = parsed.String()
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}

	f.applyHeaders(req, opts)
	if method == http.MethodPost && body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return f.client.Do(req)
}

func (f *Fetcher) applyHeaders(req *http.Request, opts *Options) {
	req.Header.Set("User-Agent", constant.UserAgent)
	if f.headers != nil {
		for k, v := range f.headers.Headers() {
			req.Header.Set(k, v)
		}
	}
	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}
}

// refreshHeaders collapses concurrent refresh attempts into one: the first rejected worker
// performs the refresh, later arrivals wait on the same flight and retry with fresh headers.
func (f *Fetcher) refreshHeaders() error {
	if f.headers == nil {
		return nil
	}
	_, err, _ := f.refresh.Do("refresh", func() (interface{}, error) {
		return nil, f.headers.Refresh()
	})
	return err
}
