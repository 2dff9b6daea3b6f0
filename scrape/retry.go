package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/harvest"
)

// FetchFunc performs a single fetch attempt.
type FetchFunc func() (*harvest.FetchResponse, error)

// RetryFunc is called before each retry with the upcoming attempt number
// (starting at 2) and the error that triggered it.
type RetryFunc func(attempt int, err error)

// DefaultRetryDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
// Scraper does not retry unless RetryDelays is set.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// FetchWithRetryDelays calls fetch until it succeeds, fails with an error
// that is not retryable, or len(delays) retries have been made. Only
// *harvest.FetchError values reporting Retryable are retried.
//
// ctx bounds the waits between attempts. When it is done the last response
// and error are returned without further attempts.
func FetchWithRetryDelays(ctx context.Context, fetch FetchFunc, delays []time.Duration, onRetry RetryFunc) (*harvest.FetchResponse, error) {
	var resp *harvest.FetchResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = fetch()
		if err == nil || attempt >= len(delays) || !retryable(err) {
			return resp, err
		}
		if ctx.Err() != nil {
			return resp, err
		}

		if onRetry != nil {
			onRetry(attempt+2, err)
		}

		timer := time.NewTimer(delays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, err
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	var fetchErr *harvest.FetchError
	return errors.As(err, &fetchErr) && fetchErr.Retryable()
}
