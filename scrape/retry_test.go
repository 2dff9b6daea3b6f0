package scrape_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithRetryDelays(t *testing.T) {
	t.Parallel()

	t.Run("returns first success without retrying", func(t *testing.T) {
		t.Parallel()

		calls := 0
		resp, err := scrape.FetchWithRetryDelays(context.Background(), func() (*harvest.FetchResponse, error) {
			calls++
			return &harvest.FetchResponse{StatusCode: 200}, nil
		}, []time.Duration{0, 0}, nil)

		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries retryable errors and reports attempts", func(t *testing.T) {
		t.Parallel()

		calls := 0
		var attempts []int
		_, err := scrape.FetchWithRetryDelays(context.Background(), func() (*harvest.FetchResponse, error) {
			calls++
			return nil, &harvest.FetchError{Kind: harvest.KindTimeout}
		}, []time.Duration{0, 0}, func(attempt int, _ error) {
			attempts = append(attempts, attempt)
		})

		var fetchErr *harvest.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, harvest.KindTimeout, fetchErr.Kind)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{2, 3}, attempts)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()

		calls := 0
		resp, err := scrape.FetchWithRetryDelays(context.Background(), func() (*harvest.FetchResponse, error) {
			calls++
			return &harvest.FetchResponse{StatusCode: 404}, &harvest.FetchError{Kind: harvest.KindHTTPStatus, StatusCode: 404}
		}, []time.Duration{0, 0}, nil)

		require.Error(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, 1, calls)
	})

	t.Run("does not retry foreign errors", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := scrape.FetchWithRetryDelays(context.Background(), func() (*harvest.FetchResponse, error) {
			calls++
			return nil, errors.New("boom")
		}, []time.Duration{0}, nil)

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		start := time.Now()
		_, err := scrape.FetchWithRetryDelays(ctx, func() (*harvest.FetchResponse, error) {
			calls++
			cancel()
			return nil, &harvest.FetchError{Kind: harvest.KindUnreachable}
		}, []time.Duration{time.Hour}, nil)

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), time.Second)
	})
}
