package harvest

import "fmt"

// EnrichmentStatus is the outcome of enriching one record.
type EnrichmentStatus string

// Enrichment statuses.
const (
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentSkipped  EnrichmentStatus = "skipped"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// EnrichmentResult holds the AI-generated fields for one scrape record.
// Results are one-to-one with the input records and in the same order.
type EnrichmentResult struct {
	Index  int              `json:"index"`
	URL    string           `json:"url"`
	Status EnrichmentStatus `json:"status"`
	Fields Fields           `json:"fields,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// EnrichRequest asks for records to be enriched by a language model.
type EnrichRequest struct {
	Records     []*ScrapeRecord `json:"records"`
	Instruction string          `json:"instruction"`
	ModelHint   string          `json:"model_hint,omitempty"`

	// BatchSize bounds the number of records per model call.
	// Zero means the enricher default.
	BatchSize int `json:"batch_size,omitempty"`
}

// Validate returns EINVALID if the request is malformed.
func (r *EnrichRequest) Validate() error {
	if len(r.Records) == 0 {
		return Errorf(EINVALID, "at least one record required")
	}
	for i, rec := range r.Records {
		if rec == nil {
			return Errorf(EINVALID, "record %d is null", i)
		}
	}
	if r.Instruction == "" {
		return Errorf(EINVALID, "instruction required")
	}
	if r.BatchSize < 0 {
		return Errorf(EINVALID, "batch size must not be negative")
	}
	return nil
}

// EnrichResponse holds one result per input record, in input order.
type EnrichResponse struct {
	Results []*EnrichmentResult `json:"results"`

	// PromptTokens is the estimated number of prompt tokens sent, when a
	// token counter is configured.
	PromptTokens int `json:"prompt_tokens,omitempty"`
}

// EnrichmentBatchError reports that a whole batch could not be enriched.
type EnrichmentBatchError struct {
	Batch int
	Err   error
}

// Error implements the error interface.
func (e *EnrichmentBatchError) Error() string {
	return fmt.Sprintf("enrichment batch %d failed: %v", e.Batch, e.Err)
}

// Unwrap returns the underlying model error.
func (e *EnrichmentBatchError) Unwrap() error {
	return e.Err
}
