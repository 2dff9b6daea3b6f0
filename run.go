package harvest

import (
	"context"
	"time"
)

// Run is the persisted output of one scrape request.
type Run struct {
	ID           string          `json:"id"`
	TemplateName string          `json:"template_name,omitempty"`
	Records      []*ScrapeRecord `json:"records"`
	Statistics   RunStatistics   `json:"statistics"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RunService represents the result store.
type RunService interface {
	// CreateRun persists a run and assigns its ID and CreatedAt.
	CreateRun(ctx context.Context, run *Run) error

	// FindRunByID retrieves a run by ID.
	// Returns ENOTFOUND if the run does not exist.
	FindRunByID(ctx context.Context, id string) (*Run, error)

	// FindRuns retrieves runs newest first.
	FindRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}

// RunFilter represents a filter for FindRuns.
type RunFilter struct {
	TemplateName *string `json:"template_name"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
