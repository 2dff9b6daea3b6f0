package mock

import "github.com/fwojciec/harvest"

var _ harvest.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of harvest.Extractor.
type Extractor struct {
	ValidateFn func(rules harvest.RuleSet) error
	ExtractFn  func(html string, baseURL string, rules harvest.RuleSet) (*harvest.Extraction, error)
}

func (e *Extractor) Validate(rules harvest.RuleSet) error {
	return e.ValidateFn(rules)
}

func (e *Extractor) Extract(html string, baseURL string, rules harvest.RuleSet) (*harvest.Extraction, error) {
	return e.ExtractFn(html, baseURL, rules)
}
