package harvest

import (
	"fmt"
	"time"
)

// RecordStatus is the outcome of scraping one target.
type RecordStatus string

// Record statuses.
const (
	StatusOK      RecordStatus = "ok"
	StatusPartial RecordStatus = "partial"
	StatusFailed  RecordStatus = "failed"
)

// ErrorKind classifies why a record is not ok.
type ErrorKind string

// Error kinds recorded on scrape records.
const (
	KindTimeout       ErrorKind = "timeout"
	KindUnreachable   ErrorKind = "unreachable"
	KindHTTPStatus    ErrorKind = "http_status"
	KindUnparseable   ErrorKind = "unparseable"
	KindNoMatch       ErrorKind = "no_match"
	KindMissingFields ErrorKind = "missing_fields"
	KindCanceled      ErrorKind = "canceled"
)

// RecordError describes why a record is partial or failed.
type RecordError struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// PageMetadata holds document-level metadata read from the page head.
type PageMetadata struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Keywords      string `json:"keywords,omitempty"`
	Author        string `json:"author,omitempty"`
	Canonical     string `json:"canonical,omitempty"`
	OGTitle       string `json:"og_title,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	OGImage       string `json:"og_image,omitempty"`
}

// ScrapeRecord is the output for one target. It is created once per target
// by the scrape orchestrator and is not modified afterwards; enrichment is
// returned separately as an EnrichmentResult.
type ScrapeRecord struct {
	URL         string        `json:"url"`
	Status      RecordStatus  `json:"status"`
	Fields      Fields        `json:"fields"`
	Error       *RecordError  `json:"error,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
	Title       string        `json:"title,omitempty"`
	Metadata    *PageMetadata `json:"metadata,omitempty"`
	ContentHash string        `json:"content_hash,omitempty"`
	ScrapedAt   time.Time     `json:"scraped_at"`
}

// Clone returns a deep copy of the record.
func (r *ScrapeRecord) Clone() *ScrapeRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = r.Fields.Clone()
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	if r.Metadata != nil {
		m := *r.Metadata
		out.Metadata = &m
	}
	return &out
}

// Attempted reports whether a fetch was started for the record's target.
func (r *ScrapeRecord) Attempted() bool {
	return r.Error == nil || r.Error.Kind != KindCanceled
}

// StatusForFields derives a record status from extracted fields: ok when
// every field is non-null, partial when some are, failed when none are.
func StatusForFields(fields Fields) RecordStatus {
	n := fields.NonNull()
	switch {
	case len(fields) == 0 || n == 0:
		return StatusFailed
	case n == len(fields):
		return StatusOK
	default:
		return StatusPartial
	}
}

// NullFields returns fields for every rule with a null value.
func NullFields(rules RuleSet) Fields {
	fields := make(Fields, len(rules))
	for i, r := range rules {
		fields[i] = Field{Name: r.Field}
	}
	return fields
}
