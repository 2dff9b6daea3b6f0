package harvest

import (
	"strings"
	"time"
)

// Target is one URL to scrape with optional per-target overrides.
// Targets are not modified once a run starts.
type Target struct {
	URL       string           `json:"url"`
	Overrides *TargetOverrides `json:"overrides,omitempty"`
}

// TargetOverrides replaces request-level settings for a single target.
type TargetOverrides struct {
	// Rules replaces the request rule set for this target when non-empty.
	Rules     RuleSet           `json:"selectors,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	TimeoutMS int               `json:"timeout_ms,omitempty"`
}

// Timeout returns the override timeout, or zero when unset.
func (o *TargetOverrides) Timeout() time.Duration {
	if o == nil {
		return 0
	}
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// TargetsFromURLs builds targets without overrides.
func TargetsFromURLs(urls []string) []Target {
	targets := make([]Target, len(urls))
	for i, u := range urls {
		targets[i] = Target{URL: u}
	}
	return targets
}

// ScrapeRequest asks for a batch of targets to be scraped with either inline
// selectors or a saved template, never both.
type ScrapeRequest struct {
	Targets      []Target `json:"targets"`
	Selectors    RuleSet  `json:"selectors,omitempty"`
	TemplateName string   `json:"template_name,omitempty"`
}

// Validate returns EINVALID if the request is malformed or contradictory.
// Rule syntax is validated separately once the rule set is resolved.
func (r *ScrapeRequest) Validate() error {
	if len(r.Targets) == 0 {
		return Errorf(EINVALID, "at least one target required")
	}
	for i, t := range r.Targets {
		if strings.TrimSpace(t.URL) == "" {
			return Errorf(EINVALID, "target %d: url required", i)
		}
		if t.Overrides != nil && t.Overrides.TimeoutMS < 0 {
			return Errorf(EINVALID, "target %d: timeout must not be negative", i)
		}
	}
	hasSelectors := len(r.Selectors) > 0
	hasTemplate := strings.TrimSpace(r.TemplateName) != ""
	switch {
	case hasSelectors && hasTemplate:
		return Errorf(EINVALID, "selectors and template_name are mutually exclusive")
	case !hasSelectors && !hasTemplate:
		return Errorf(EINVALID, "one of selectors or template_name required")
	}
	return nil
}

// ScrapeResponse holds one record per requested target, in request order.
type ScrapeResponse struct {
	RunID      string          `json:"run_id,omitempty"`
	Records    []*ScrapeRecord `json:"records"`
	Statistics RunStatistics   `json:"statistics"`

	// Canceled is set when the caller canceled the batch before every
	// target was submitted.
	Canceled bool `json:"canceled,omitempty"`
}
