package harvest

import "context"

// Format is an export artifact format.
type Format string

// Export formats.
const (
	// FormatTabular is one CSV row per record and one column per field.
	FormatTabular Format = "tabular"
	// FormatStructured is a JSON document with one object per record.
	FormatStructured Format = "structured"
)

// ExportRequest asks for records, optionally with their enrichments, to be
// rendered into an artifact.
type ExportRequest struct {
	Records []*ScrapeRecord `json:"records"`

	// Enrichments, when present, must align one-to-one with Records.
	Enrichments []*EnrichmentResult `json:"enrichments,omitempty"`

	Format Format `json:"format"`
	Name   string `json:"name,omitempty"`
}

// Validate returns EINVALID or EFORMAT if the request is malformed.
func (r *ExportRequest) Validate() error {
	switch r.Format {
	case FormatTabular, FormatStructured:
	default:
		return Errorf(EFORMAT, "unsupported export format %q", r.Format)
	}
	for i, rec := range r.Records {
		if rec == nil {
			return Errorf(EINVALID, "record %d is null", i)
		}
	}
	if r.Enrichments != nil && len(r.Enrichments) != len(r.Records) {
		return Errorf(EINVALID, "got %d enrichments for %d records", len(r.Enrichments), len(r.Records))
	}
	return nil
}

// Artifact is an exported, downloadable document.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ArtifactWriter stores artifacts and returns where each was written.
type ArtifactWriter interface {
	WriteArtifact(ctx context.Context, a *Artifact) (string, error)
}
