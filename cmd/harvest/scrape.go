package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/scrape"
)

// Run executes the scrape command.
func (c *ScrapeCmd) Run(deps *Dependencies) error {
	rules, err := ParseSelectors(c.Selector)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	urls := c.URLs
	if c.Sitemap != "" {
		filter, err := harvest.CompileURLFilter(c.Filter, c.Exclude)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		discovered, err := deps.Sitemaps.DiscoverURLs(deps.Ctx, c.Sitemap, filter)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		if c.Limit > 0 && len(discovered) > c.Limit {
			discovered = discovered[:c.Limit]
		}
		fmt.Fprintf(deps.Stderr, "Found %d URLs in sitemaps\n", len(discovered))
		urls = append(urls, discovered...)
	}

	req := &harvest.ScrapeRequest{
		Targets:      harvest.TargetsFromURLs(urls),
		Selectors:    rules,
		TemplateName: c.Template,
	}

	progress := func(event harvest.ProgressEvent) {
		switch event.Type {
		case harvest.ProgressCompleted:
			fmt.Fprintf(deps.Stderr, "  [%d/%d] %-7s %s\n", event.Completed, event.Total, event.Status, scrape.TruncateURL(event.URL, 80))
		case harvest.ProgressFailed:
			fmt.Fprintf(deps.Stderr, "  [%d/%d] failed  %s: %v\n", event.Completed, event.Total, scrape.TruncateURL(event.URL, 80), event.Error)
		}
	}

	resp, err := deps.Scraper.Scrape(deps.Ctx, req, progress)
	if resp == nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}
	if err != nil {
		// Partial results: the run was canceled or could not be saved.
		fmt.Fprintf(deps.Stderr, "warning: %v\n", err)
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return nil
	}

	printSummary(deps, resp)
	return nil
}

func printSummary(deps *Dependencies, resp *harvest.ScrapeResponse) {
	stats := resp.Statistics
	if resp.RunID != "" {
		fmt.Fprintf(deps.Stdout, "Run %s\n", resp.RunID)
	}
	fmt.Fprintf(deps.Stdout, "  %d attempted: %d ok, %d partial, %d failed", stats.Attempted, stats.Succeeded, stats.Partial, stats.Failed)
	if stats.Canceled > 0 {
		fmt.Fprintf(deps.Stdout, ", %d canceled", stats.Canceled)
	}
	fmt.Fprintf(deps.Stdout, " in %s\n", stats.Elapsed())

	names := make([]string, 0, len(stats.FieldMatchRates))
	for name := range stats.FieldMatchRates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(deps.Stdout, "  %-20s %s\n", name, scrape.FormatRate(stats.FieldMatchRates[name]))
	}
	if resp.Canceled {
		fmt.Fprintln(deps.Stdout, "  Canceled before all targets were scraped.")
	}
}

// ParseSelectors parses selector flags into a rule set in flag order.
func ParseSelectors(specs []string) (harvest.RuleSet, error) {
	var rules harvest.RuleSet
	for _, s := range specs {
		r, err := ParseSelector(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseSelector parses a selector flag of the form
// field=query[::mode[::match]], for example "links=a::attribute:href::all".
func ParseSelector(s string) (harvest.SelectorRule, error) {
	field, rest, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return harvest.SelectorRule{}, harvest.Errorf(harvest.ERULE, "selector %q: expected field=query", s)
	}

	parts := strings.Split(rest, "::")
	if len(parts) > 3 {
		return harvest.SelectorRule{}, harvest.Errorf(harvest.ERULE, "selector %q: too many parts", s)
	}

	rule := harvest.SelectorRule{
		Field: field,
		Query: strings.TrimSpace(parts[0]),
		Mode:  harvest.TextMode(),
		Match: harvest.MatchFirst,
	}
	if len(parts) > 1 {
		mode, err := harvest.ParseExtractMode(parts[1])
		if err != nil {
			return harvest.SelectorRule{}, harvest.Errorf(harvest.ERULE, "selector %q: %s", s, harvest.ErrorMessage(err))
		}
		rule.Mode = mode
	}
	if len(parts) > 2 {
		if m := harvest.MatchPolicy(strings.TrimSpace(parts[2])); m != "" {
			rule.Match = m
		}
	}
	if err := rule.Validate(); err != nil {
		return harvest.SelectorRule{}, err
	}
	return rule, nil
}
