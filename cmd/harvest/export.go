package main

import (
	"fmt"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/scrape"
)

// Run executes the export command.
func (c *ExportCmd) Run(deps *Dependencies) error {
	run, err := deps.Runs.FindRunByID(deps.Ctx, c.RunID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	req := &harvest.ExportRequest{
		Records: run.Records,
		Format:  harvest.Format(c.Format),
		Name:    c.Name,
	}
	if req.Name == "" {
		req.Name = defaultExportName(run)
	}
	if c.Enrichments != "" {
		req.Enrichments, err = readEnrichments(c.Enrichments)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
	}

	artifact, err := deps.Exporter.Export(req)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	path, err := deps.Artifacts.WriteArtifact(deps.Ctx, artifact)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Exported %d records to %s (%s)\n", len(run.Records), path, scrape.FormatBytes(len(artifact.Data)))
	return nil
}

// defaultExportName names an export after its template, or its run ID for
// inline-selector runs.
func defaultExportName(run *harvest.Run) string {
	if run.TemplateName != "" {
		return run.TemplateName + "-" + shortID(run.ID)
	}
	return "run-" + shortID(run.ID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
