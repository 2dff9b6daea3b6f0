package harvest_test

import (
	"testing"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/stretchr/testify/assert"
)

func TestComputeStatistics(t *testing.T) {
	t.Parallel()

	t.Run("counts statuses and match rates over attempted records", func(t *testing.T) {
		t.Parallel()

		records := []*harvest.ScrapeRecord{
			{URL: "a", Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "title", Value: "A"}, {Name: "price", Value: "1"}}},
			{URL: "b", Status: harvest.StatusPartial, Fields: harvest.Fields{{Name: "title", Value: "B"}, {Name: "price"}}},
			{URL: "c", Status: harvest.StatusFailed, Fields: harvest.Fields{{Name: "title"}, {Name: "price"}},
				Error: &harvest.RecordError{Kind: harvest.KindTimeout}},
			{URL: "d", Status: harvest.StatusFailed, Fields: harvest.Fields{{Name: "title"}, {Name: "price"}},
				Error: &harvest.RecordError{Kind: harvest.KindCanceled}},
		}

		stats := harvest.ComputeStatistics(records, 1500*time.Millisecond)

		assert.Equal(t, 3, stats.Attempted)
		assert.Equal(t, 1, stats.Succeeded)
		assert.Equal(t, 1, stats.Partial)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 1, stats.Canceled)
		assert.Equal(t, int64(1500), stats.ElapsedMS)
		assert.Equal(t, 1500*time.Millisecond, stats.Elapsed())
		assert.InDelta(t, 2.0/3.0, stats.FieldMatchRates["title"], 1e-9)
		assert.InDelta(t, 1.0/3.0, stats.FieldMatchRates["price"], 1e-9)
	})

	t.Run("empty input yields zero statistics", func(t *testing.T) {
		t.Parallel()

		stats := harvest.ComputeStatistics(nil, 0)

		assert.Equal(t, 0, stats.Attempted)
		assert.Empty(t, stats.FieldMatchRates)
	})

	t.Run("counts sequence fields as matched only when non-empty", func(t *testing.T) {
		t.Parallel()

		records := []*harvest.ScrapeRecord{
			{Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "tags", Value: []string{"x"}}}},
			{Status: harvest.StatusFailed, Fields: harvest.Fields{{Name: "tags", Value: []string{}}}},
		}

		stats := harvest.ComputeStatistics(records, 0)

		assert.InDelta(t, 0.5, stats.FieldMatchRates["tags"], 1e-9)
	})

	t.Run("rates count only records declaring the field", func(t *testing.T) {
		t.Parallel()

		records := []*harvest.ScrapeRecord{
			{URL: "a", Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "title", Value: "A"}, {Name: "price", Value: "1"}}},
			{URL: "b", Status: harvest.StatusPartial, Fields: harvest.Fields{{Name: "title", Value: "B"}, {Name: "price"}}},
			{URL: "c", Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "price", Value: "2"}}},
		}

		stats := harvest.ComputeStatistics(records, 0)

		assert.Equal(t, 3, stats.Attempted)
		assert.InDelta(t, 1.0, stats.FieldMatchRates["title"], 1e-9)
		assert.InDelta(t, 2.0/3.0, stats.FieldMatchRates["price"], 1e-9)
	})
}
