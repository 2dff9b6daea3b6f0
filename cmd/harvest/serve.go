package main

import (
	"fmt"

	"github.com/fwojciec/harvest"
	harvesthttp "github.com/fwojciec/harvest/http"
)

// Run executes the serve command. It blocks until the context is canceled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	s := harvesthttp.NewServer()
	s.Addr = c.Addr
	s.APIKey = c.APIKey
	if deps.Logger != nil {
		s.Logger = deps.Logger
	}
	s.Extractor = deps.Extractor
	s.ScrapeService = deps.Scraper
	s.EnrichService = deps.Enricher
	s.ExportService = deps.Exporter
	s.TemplateService = deps.Templates
	s.RunService = deps.Runs

	if err := s.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Listening on :%d\n", s.Port())
	if deps.Enricher == nil {
		fmt.Fprintln(deps.Stdout, "  /enrich disabled: no AI provider configured")
	}

	<-deps.Ctx.Done()

	return s.Close()
}
