//go:build integration

package gemini_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/enrich"
	"github.com/fwojciec/harvest/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestCompleter_Integration_EnrichesRecords(t *testing.T) {
	t.Parallel()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	require.NoError(t, err)

	e := &enrich.Enricher{Completer: gemini.NewCompleter(client, "")}
	resp, err := e.Enrich(ctx, &harvest.EnrichRequest{
		Records: []*harvest.ScrapeRecord{
			{URL: "https://shop.example/p/1", Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "title", Value: "Cordless Drill 18V"}}},
			{URL: "https://shop.example/p/2", Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "title", Value: "Organic Green Tea"}}},
		},
		Instruction: `Add a "category" field: one of "tools" or "food".`,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.Equal(t, harvest.EnrichmentEnriched, r.Status, r.Reason)
		_, ok := r.Fields.Get("category")
		assert.True(t, ok)
	}
}
