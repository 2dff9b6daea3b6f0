// Package http provides the net/http implementation of harvest.Fetcher,
// sitemap-based target discovery, and the JSON API server.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/harvest"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultMaxBodySize caps the number of bytes read from a response body.
const DefaultMaxBodySize = 10 << 20

// DefaultUserAgent identifies requests as a desktop browser. Many sites
// serve reduced or blocked content to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Ensure Fetcher implements harvest.Fetcher at compile time.
var _ harvest.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves page content using HTTP GET requests. It does not
// execute JavaScript and does not retry.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	headers     map[string]string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the default per-request timeout.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
// Larger bodies are truncated.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithHeader sets a default request header. Headers on a FetchRequest take
// precedence.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		maxBodySize: DefaultMaxBodySize,
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	return f
}

// Fetch retrieves the content at req.URL.
//
// Every failure is a *harvest.FetchError. For non-2xx responses both the
// response and an error of kind harvest.KindHTTPStatus are returned.
func (f *Fetcher) Fetch(ctx context.Context, req harvest.FetchRequest) (*harvest.FetchResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &harvest.FetchError{Kind: harvest.KindUnreachable, URL: req.URL, Err: err}
	}
	if httpReq.URL.Scheme != "http" && httpReq.URL.Scheme != "https" {
		return nil, &harvest.FetchError{
			Kind: harvest.KindUnreachable,
			URL:  req.URL,
			Err:  fmt.Errorf("unsupported scheme %q", httpReq.URL.Scheme),
		}
	}
	for k, v := range f.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, classify(ctx, req.URL, err)
	}

	out := &harvest.FetchResponse{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &harvest.FetchError{
			Kind:       harvest.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			URL:        req.URL,
		}
	}
	return out, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func classify(ctx context.Context, url string, err error) *harvest.FetchError {
	if isTimeout(ctx, err) {
		return &harvest.FetchError{Kind: harvest.KindTimeout, URL: url, Err: err}
	}
	return &harvest.FetchError{Kind: harvest.KindUnreachable, URL: url, Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
