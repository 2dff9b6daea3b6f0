package enrich_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/enrich"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []*harvest.ScrapeRecord {
	out := make([]*harvest.ScrapeRecord, n)
	for i := range out {
		out[i] = &harvest.ScrapeRecord{
			URL:    fmt.Sprintf("https://shop.example/p/%d", i),
			Status: harvest.StatusOK,
			Fields: harvest.Fields{{Name: "title", Value: fmt.Sprintf("Product %d", i)}, {Name: "tags", Value: []string{"a"}}},
		}
	}
	return out
}

// echoCompleter answers every prompt with a category for each record id it
// finds in the prompt.
func echoCompleter() *mock.Completer {
	return &mock.Completer{
		CompleteFn: func(_ context.Context, req harvest.CompletionRequest) (string, error) {
			ids := promptIDs(req.Prompt)
			var parts []string
			for _, id := range ids {
				parts = append(parts, fmt.Sprintf(`{"id":%d,"fields":{"category":"tools-%d","score":%d}}`, id, id, id))
			}
			return `{"results":[` + strings.Join(parts, ",") + `]}`, nil
		},
	}
}

func promptIDs(prompt string) []int {
	start := strings.Index(prompt, "Records:\n") + len("Records:\n")
	end := strings.Index(prompt, "\n\nRespond")
	var items []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal([]byte(prompt[start:end]), &items); err != nil {
		panic(err)
	}
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestEnricher_Enrich(t *testing.T) {
	t.Parallel()

	t.Run("enriches every record in input order", func(t *testing.T) {
		t.Parallel()

		e := &enrich.Enricher{Completer: echoCompleter()}
		recs := records(5)

		resp, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     recs,
			Instruction: "Categorize each product.",
			BatchSize:   2,
		})

		require.NoError(t, err)
		require.Len(t, resp.Results, 5)
		for i, r := range resp.Results {
			assert.Equal(t, i, r.Index)
			assert.Equal(t, recs[i].URL, r.URL)
			assert.Equal(t, harvest.EnrichmentEnriched, r.Status)
			v, _ := r.Fields.Get("category")
			assert.Equal(t, fmt.Sprintf("tools-%d", i), v)
			v, _ = r.Fields.Get("score")
			assert.Equal(t, json.Number(fmt.Sprint(i)), v)
		}
	})

	t.Run("splits records into bounded batches", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var sizes []int
		completer := echoCompleter()
		inner := completer.CompleteFn
		completer.CompleteFn = func(ctx context.Context, req harvest.CompletionRequest) (string, error) {
			mu.Lock()
			sizes = append(sizes, len(promptIDs(req.Prompt)))
			mu.Unlock()
			return inner(ctx, req)
		}
		e := &enrich.Enricher{Completer: completer, Concurrency: 3}

		_, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     records(7),
			Instruction: "Categorize.",
			BatchSize:   3,
		})

		require.NoError(t, err)
		assert.ElementsMatch(t, []int{3, 3, 1}, sizes)
	})

	t.Run("sends system prompt model hint and json mode", func(t *testing.T) {
		t.Parallel()

		var got harvest.CompletionRequest
		e := &enrich.Enricher{Completer: &mock.Completer{
			CompleteFn: func(_ context.Context, req harvest.CompletionRequest) (string, error) {
				got = req
				return `{"results":[]}`, nil
			},
		}}

		_, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     records(1),
			Instruction: "Summarize.",
			ModelHint:   "gemini-2.5-flash",
		})

		require.NoError(t, err)
		assert.Equal(t, "gemini-2.5-flash", got.Model)
		assert.Equal(t, enrich.SystemPrompt, got.System)
		assert.True(t, got.JSON)
		assert.True(t, strings.HasPrefix(got.Prompt, "Summarize."))
	})

	t.Run("fails every record of a batch when the model call fails", func(t *testing.T) {
		t.Parallel()

		e := &enrich.Enricher{Completer: &mock.Completer{
			CompleteFn: func(context.Context, harvest.CompletionRequest) (string, error) {
				return "", errors.New("quota exceeded")
			},
		}}
		recs := records(3)
		before := make([]*harvest.ScrapeRecord, len(recs))
		for i, r := range recs {
			before[i] = r.Clone()
		}

		resp, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     recs,
			Instruction: "Categorize.",
			BatchSize:   3,
		})

		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.Equal(t, harvest.EnrichmentFailed, r.Status)
			assert.Contains(t, r.Reason, "quota exceeded")
			assert.Contains(t, r.Reason, "batch 0")
		}
		assert.Equal(t, before, recs)
	})

	t.Run("isolates batch failures", func(t *testing.T) {
		t.Parallel()

		completer := echoCompleter()
		inner := completer.CompleteFn
		completer.CompleteFn = func(ctx context.Context, req harvest.CompletionRequest) (string, error) {
			if promptIDs(req.Prompt)[0] == 0 {
				return "", errors.New("timeout")
			}
			return inner(ctx, req)
		}
		e := &enrich.Enricher{Completer: completer}

		resp, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     records(4),
			Instruction: "Categorize.",
			BatchSize:   2,
		})

		require.NoError(t, err)
		assert.Equal(t, harvest.EnrichmentFailed, resp.Results[0].Status)
		assert.Equal(t, harvest.EnrichmentFailed, resp.Results[1].Status)
		assert.Equal(t, harvest.EnrichmentEnriched, resp.Results[2].Status)
		assert.Equal(t, harvest.EnrichmentEnriched, resp.Results[3].Status)
	})

	t.Run("fails only records missing from the response", func(t *testing.T) {
		t.Parallel()

		e := &enrich.Enricher{Completer: &mock.Completer{
			CompleteFn: func(context.Context, harvest.CompletionRequest) (string, error) {
				return `{"results":[{"id":0,"fields":{"category":"x"}},{"id":2,"fields":"oops"}]}`, nil
			},
		}}

		resp, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     records(3),
			Instruction: "Categorize.",
		})

		require.NoError(t, err)
		assert.Equal(t, harvest.EnrichmentEnriched, resp.Results[0].Status)
		assert.Equal(t, harvest.EnrichmentFailed, resp.Results[1].Status)
		assert.Equal(t, harvest.EnrichmentFailed, resp.Results[2].Status)
	})

	t.Run("skips failed records without sending them", func(t *testing.T) {
		t.Parallel()

		var sent []int
		completer := echoCompleter()
		inner := completer.CompleteFn
		completer.CompleteFn = func(ctx context.Context, req harvest.CompletionRequest) (string, error) {
			sent = promptIDs(req.Prompt)
			return inner(ctx, req)
		}
		e := &enrich.Enricher{Completer: completer}
		recs := records(3)
		recs[1].Status = harvest.StatusFailed

		resp, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     recs,
			Instruction: "Categorize.",
		})

		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, sent)
		assert.Equal(t, harvest.EnrichmentSkipped, resp.Results[1].Status)
		assert.Equal(t, harvest.EnrichmentEnriched, resp.Results[2].Status)
	})

	t.Run("reports prompt tokens when a counter is set", func(t *testing.T) {
		t.Parallel()

		e := &enrich.Enricher{
			Completer: echoCompleter(),
			TokenCounter: &mock.TokenCounter{
				CountTokensFn: func(context.Context, string) (int, error) { return 100, nil },
			},
		}

		resp, err := e.Enrich(context.Background(), &harvest.EnrichRequest{
			Records:     records(4),
			Instruction: "Categorize.",
			BatchSize:   2,
		})

		require.NoError(t, err)
		assert.Equal(t, 200, resp.PromptTokens)
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		t.Parallel()

		e := &enrich.Enricher{Completer: echoCompleter()}

		_, err := e.Enrich(context.Background(), &harvest.EnrichRequest{Records: records(1)})
		assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))

		_, err = e.Enrich(context.Background(), &harvest.EnrichRequest{Records: records(1), Instruction: "x", BatchSize: -1})
		assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))

		_, err = e.Enrich(context.Background(), &harvest.EnrichRequest{Instruction: "x"})
		assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))
	})
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	batch := []int{4, 5}

	t.Run("accepts fenced json with preamble", func(t *testing.T) {
		t.Parallel()

		text := "Here you go:\n```json\n{\"results\":[{\"id\":4,\"fields\":{\"b\":1,\"a\":2}}]}\n```"

		got, err := enrich.ParseResponse(text, batch)

		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, got[4].Names())
	})

	t.Run("accepts bare arrays matched by position", func(t *testing.T) {
		t.Parallel()

		got, err := enrich.ParseResponse(`[{"category":"x"},{"category":"y"}]`, batch)

		require.NoError(t, err)
		assert.Equal(t, harvest.Fields{{Name: "category", Value: "x"}}, got[4])
		assert.Equal(t, harvest.Fields{{Name: "category", Value: "y"}}, got[5])
	})

	t.Run("accepts string ids", func(t *testing.T) {
		t.Parallel()

		got, err := enrich.ParseResponse(`{"results":[{"id":"5","fields":{"c":true}}]}`, batch)

		require.NoError(t, err)
		assert.Equal(t, harvest.Fields{{Name: "c", Value: true}}, got[5])
	})

	t.Run("ignores ids outside the batch", func(t *testing.T) {
		t.Parallel()

		got, err := enrich.ParseResponse(`{"results":[{"id":9,"fields":{"c":1}}]}`, batch)

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("rejects responses without json", func(t *testing.T) {
		t.Parallel()

		_, err := enrich.ParseResponse("I cannot help with that.", batch)

		require.Error(t, err)
	})

	t.Run("rejects objects without results", func(t *testing.T) {
		t.Parallel()

		_, err := enrich.ParseResponse(`{"answer":"no"}`, batch)

		require.Error(t, err)
	})
}
