package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Extractor harvest.Extractor
	Templates harvest.TemplateService
	Runs      harvest.RunService
	Scraper   harvest.ScrapeService
	Enricher  harvest.EnrichService
	Exporter  harvest.ExportService
	Artifacts harvest.ArtifactWriter
	Sitemaps  harvest.TargetSource
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" help:"Log fetches and model calls to stderr"`

	Scrape   ScrapeCmd   `cmd:"" help:"Scrape URLs with selectors or a saved template"`
	Template TemplateCmd `cmd:"" help:"Manage saved templates"`
	Enrich   EnrichCmd   `cmd:"" help:"Add AI-generated fields to the records of a saved run"`
	Export   ExportCmd   `cmd:"" help:"Export a saved run as CSV or JSON"`
	Runs     RunsCmd     `cmd:"" help:"List saved runs"`
	Discover DiscoverCmd `cmd:"" help:"List URLs found in a site's sitemaps"`
	Serve    ServeCmd    `cmd:"" help:"Serve the JSON API"`
}

// ScrapeCmd is the "scrape" subcommand.
type ScrapeCmd struct {
	URLs        []string      `arg:"" optional:"" name:"url" help:"URLs to scrape"`
	Selector    []string      `short:"s" name:"selector" sep:"none" help:"Selector rule as field=query[::mode[::match]] (repeatable)"`
	Template    string        `short:"t" help:"Name of a saved template to use instead of selectors"`
	Sitemap     string        `help:"Also scrape URLs discovered from this site's sitemaps"`
	Filter      []string      `short:"F" sep:"none" help:"Only keep discovered URLs matching regex (repeatable)"`
	Exclude     []string      `short:"x" sep:"none" help:"Drop discovered URLs matching regex (repeatable)"`
	Limit       int           `help:"Maximum number of discovered URLs"`
	Concurrency int           `short:"c" default:"10" help:"Concurrent fetch limit"`
	RateLimit   float64       `default:"2" help:"Requests per second per domain (0 disables)"`
	Timeout     time.Duration `default:"10s" help:"Per-request timeout"`
	Retry       bool          `help:"Retry timeouts and 5xx responses with backoff"`
	ErrorPages  bool          `help:"Extract fields from non-2xx responses"`
	JSON        bool          `help:"Print the full response as JSON"`
}

// TemplateCmd groups the template subcommands.
type TemplateCmd struct {
	Save TemplateSaveCmd `cmd:"" help:"Save or overwrite a template"`
	List TemplateListCmd `cmd:"" help:"List saved templates"`
	Show TemplateShowCmd `cmd:"" help:"Print a template as JSON"`
}

// TemplateSaveCmd is the "template save" subcommand.
type TemplateSaveCmd struct {
	Name        string   `arg:"" help:"Template name"`
	Selector    []string `short:"s" name:"selector" sep:"none" help:"Selector rule as field=query[::mode[::match]] (repeatable)"`
	File        string   `short:"f" type:"existingfile" help:"JSON file with a selectors object"`
	Description string   `short:"d" help:"Template description"`
}

// TemplateListCmd is the "template list" subcommand.
type TemplateListCmd struct{}

// TemplateShowCmd is the "template show" subcommand.
type TemplateShowCmd struct {
	Name string `arg:"" help:"Template name"`
}

// EnrichCmd is the "enrich" subcommand.
type EnrichCmd struct {
	RunID       string `arg:"" name:"run-id" help:"ID of a saved run"`
	Instruction string `short:"i" required:"" help:"What the model should add to each record"`
	Model       string `short:"m" help:"Model name (provider default when empty)"`
	BatchSize   int    `short:"b" help:"Records per model call"`
	Output      string `short:"o" help:"Write enrichment results to this file instead of stdout"`
}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	RunID       string `arg:"" name:"run-id" help:"ID of a saved run"`
	Format      string `short:"f" enum:"tabular,structured" default:"tabular" help:"Artifact format (tabular, structured)"`
	Name        string `short:"n" help:"Artifact base name"`
	Dir         string `short:"d" default:"." help:"Output directory"`
	Enrichments string `short:"e" type:"existingfile" help:"Enrichment results written by 'harvest enrich'"`
}

// RunsCmd is the "runs" subcommand.
type RunsCmd struct {
	Template string `short:"t" help:"Only show runs of this template"`
	Limit    int    `short:"l" default:"20" help:"Maximum number of runs"`
	Offset   int    `help:"Number of runs to skip"`
}

// DiscoverCmd is the "discover" subcommand.
type DiscoverCmd struct {
	URL     string   `arg:"" help:"Site URL"`
	Filter  []string `short:"F" sep:"none" help:"Only keep URLs matching regex (repeatable)"`
	Exclude []string `short:"x" sep:"none" help:"Drop URLs matching regex (repeatable)"`
	Limit   int      `help:"Maximum number of URLs"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr        string  `default:":8080" help:"Listen address"`
	APIKey      string  `name:"api-key" env:"HARVEST_API_KEY" help:"Require this key in the X-API-Key header"`
	Concurrency int     `short:"c" default:"10" help:"Concurrent fetch limit per scrape"`
	RateLimit   float64 `default:"2" help:"Requests per second per domain (0 disables)"`
}
