package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/harvest"
	main "github.com/fwojciec/harvest/cmd/harvest"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun() *harvest.Run {
	return &harvest.Run{
		ID:           "0193a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b",
		TemplateName: "products",
		Records: []*harvest.ScrapeRecord{
			{URL: "https://example.com/a", Status: harvest.StatusOK, Fields: harvest.Fields{{Name: "name", Value: "Lamp"}}},
			{URL: "https://example.com/b", Status: harvest.StatusFailed, Fields: harvest.Fields{{Name: "name"}}},
		},
	}
}

func testEnrichResponse() *harvest.EnrichResponse {
	return &harvest.EnrichResponse{
		Results: []*harvest.EnrichmentResult{
			{Index: 0, URL: "https://example.com/a", Status: harvest.EnrichmentEnriched, Fields: harvest.Fields{{Name: "category", Value: "lighting"}}},
			{Index: 1, URL: "https://example.com/b", Status: harvest.EnrichmentSkipped, Reason: "record has no extracted data"},
		},
		PromptTokens: 1200,
	}
}

func TestEnrichCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("enriches run records and prints results", func(t *testing.T) {
		t.Parallel()

		runs := &mock.RunService{
			FindRunByIDFn: func(_ context.Context, id string) (*harvest.Run, error) {
				assert.Equal(t, "run-1", id)
				return testRun(), nil
			},
		}
		var got *harvest.EnrichRequest
		enricher := &mock.EnrichService{
			EnrichFn: func(_ context.Context, req *harvest.EnrichRequest) (*harvest.EnrichResponse, error) {
				got = req
				return testEnrichResponse(), nil
			},
		}

		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:      context.Background(),
			Stdout:   stdout,
			Stderr:   stderr,
			Runs:     runs,
			Enricher: enricher,
		}

		cmd := &main.EnrichCmd{RunID: "run-1", Instruction: "Add a category", Model: "fast", BatchSize: 5}
		err := cmd.Run(deps)

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Len(t, got.Records, 2)
		assert.Equal(t, "Add a category", got.Instruction)
		assert.Equal(t, "fast", got.ModelHint)
		assert.Equal(t, 5, got.BatchSize)

		var resp harvest.EnrichResponse
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
		require.Len(t, resp.Results, 2)
		assert.Equal(t, harvest.EnrichmentEnriched, resp.Results[0].Status)
		assert.Contains(t, stderr.String(), "Enriched 1 records (1 skipped, 0 failed), ~1k tokens sent")
	})

	t.Run("writes results to a file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "enrichments.json")
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: &bytes.Buffer{},
			Stderr: &bytes.Buffer{},
			Runs: &mock.RunService{
				FindRunByIDFn: func(_ context.Context, _ string) (*harvest.Run, error) {
					return testRun(), nil
				},
			},
			Enricher: &mock.EnrichService{
				EnrichFn: func(_ context.Context, _ *harvest.EnrichRequest) (*harvest.EnrichResponse, error) {
					return testEnrichResponse(), nil
				},
			},
		}

		err := (&main.EnrichCmd{RunID: "run-1", Instruction: "x", Output: path}).Run(deps)

		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var resp harvest.EnrichResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Len(t, resp.Results, 2)
		assert.Contains(t, deps.Stdout.(*bytes.Buffer).String(), "Results written to "+path)
	})

	t.Run("reports unknown run", func(t *testing.T) {
		t.Parallel()

		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: &bytes.Buffer{},
			Stderr: stderr,
			Runs: &mock.RunService{
				FindRunByIDFn: func(_ context.Context, _ string) (*harvest.Run, error) {
					return nil, harvest.Errorf(harvest.ENOTFOUND, "run not found")
				},
			},
		}

		err := (&main.EnrichCmd{RunID: "nope", Instruction: "x"}).Run(deps)

		require.Error(t, err)
		assert.Equal(t, harvest.ENOTFOUND, harvest.ErrorCode(err))
		assert.Contains(t, stderr.String(), "run not found")
	})
}
