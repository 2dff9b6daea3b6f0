package harvest

import "context"

// ProgressType indicates the type of progress event.
type ProgressType int

// Progress event types.
const (
	ProgressStarted ProgressType = iota
	ProgressCompleted
	ProgressFailed
	ProgressFinished
)

// ProgressEvent reports progress during a scrape run.
type ProgressEvent struct {
	Type      ProgressType
	Index     int
	URL       string
	Status    RecordStatus
	Completed int
	Total     int
	Error     error
}

// ProgressFunc is called as targets are processed. Calls are serialized.
type ProgressFunc func(ProgressEvent)

// ScrapeService runs scrape requests.
type ScrapeService interface {
	// Scrape returns one record per target in request order. Request-level
	// problems (EINVALID, ENOTFOUND, ERULE) are returned before any fetch.
	Scrape(ctx context.Context, req *ScrapeRequest, progress ProgressFunc) (*ScrapeResponse, error)
}

// EnrichService runs enrichment requests.
type EnrichService interface {
	// Enrich returns one result per record in input order. Model failures are
	// recorded per result and never returned as an error.
	Enrich(ctx context.Context, req *EnrichRequest) (*EnrichResponse, error)
}

// ExportService renders export artifacts.
type ExportService interface {
	Export(req *ExportRequest) (*Artifact, error)
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
