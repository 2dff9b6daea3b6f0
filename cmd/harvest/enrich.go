package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/scrape"
)

// Run executes the enrich command.
func (c *EnrichCmd) Run(deps *Dependencies) error {
	run, err := deps.Runs.FindRunByID(deps.Ctx, c.RunID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	resp, err := deps.Enricher.Enrich(deps.Ctx, &harvest.EnrichRequest{
		Records:     run.Records,
		Instruction: c.Instruction,
		ModelHint:   c.Model,
		BatchSize:   c.BatchSize,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	// Results go to stdout unless a file is given, so the summary must not.
	summary := deps.Stderr
	if c.Output != "" {
		summary = deps.Stdout
		if err := writeEnrichments(c.Output, resp); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %v\n", err)
			return err
		}
	} else {
		if err := encodeEnrichments(deps.Stdout, resp); err != nil {
			return err
		}
	}

	var enriched, skipped, failed int
	for _, r := range resp.Results {
		switch r.Status {
		case harvest.EnrichmentEnriched:
			enriched++
		case harvest.EnrichmentSkipped:
			skipped++
		default:
			failed++
		}
	}
	fmt.Fprintf(summary, "Enriched %d records (%d skipped, %d failed)", enriched, skipped, failed)
	if resp.PromptTokens > 0 {
		fmt.Fprintf(summary, ", %s sent", scrape.FormatTokens(resp.PromptTokens))
	}
	fmt.Fprintln(summary)
	if c.Output != "" {
		fmt.Fprintf(summary, "  Results written to %s\n", c.Output)
	}
	return nil
}

func writeEnrichments(path string, resp *harvest.EnrichResponse) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeEnrichments(f, resp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeEnrichments(w io.Writer, resp *harvest.EnrichResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// readEnrichments reads results written by the enrich command.
func readEnrichments(path string) ([]*harvest.EnrichmentResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "cannot read %s: %v", path, err)
	}
	var resp harvest.EnrichResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "%s: invalid enrichment results", path)
	}
	if resp.Results == nil {
		resp.Results = []*harvest.EnrichmentResult{}
	}
	return resp.Results, nil
}
