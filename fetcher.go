package harvest

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// FetchRequest describes one page retrieval.
type FetchRequest struct {
	URL     string
	Headers map[string]string

	// Timeout bounds the whole call including the body read.
	// Zero means the fetcher default.
	Timeout time.Duration
}

// FetchResponse holds the raw content of a retrieved page.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// FetchError reports why a page could not be retrieved successfully.
// For KindHTTPStatus the fetcher still returns the response body.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
	case KindTimeout:
		return fmt.Sprintf("timeout fetching %s", e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
}

// Unwrap returns the underlying transport error, if any.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed: timeouts,
// network failures, 429 and 5xx responses.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindUnreachable:
		return true
	case KindHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// RecordError converts the fetch error into its record form.
func (e *FetchError) RecordError() *RecordError {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	} else if e.Kind == KindHTTPStatus {
		msg = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return &RecordError{Kind: e.Kind, StatusCode: e.StatusCode, Message: msg}
}

// Fetcher retrieves raw page content.
//
// Fetch returns a *FetchError for every failure. Non-2xx responses return
// both the response (with body) and a FetchError of kind KindHTTPStatus.
// Implementations do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error)

	// Close releases transport resources.
	Close() error
}
