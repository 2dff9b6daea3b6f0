package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/harvest"
)

// Run executes the runs command.
func (c *RunsCmd) Run(deps *Dependencies) error {
	filter := harvest.RunFilter{Limit: c.Limit, Offset: c.Offset}
	if c.Template != "" {
		filter.TemplateName = &c.Template
	}

	runs, err := deps.Runs.FindRuns(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(deps.Stdout, "No runs found. Use 'harvest scrape' to create one.")
		return nil
	}

	for _, r := range runs {
		source := r.TemplateName
		if source == "" {
			source = "-"
		}
		s := r.Statistics
		fmt.Fprintf(deps.Stdout, "%s  %s  %-16s %d records (%d ok, %d partial, %d failed)\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), source, len(r.Records), s.Succeeded, s.Partial, s.Failed)
	}
	return nil
}
