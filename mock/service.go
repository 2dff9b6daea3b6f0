package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var (
	_ harvest.ScrapeService  = (*ScrapeService)(nil)
	_ harvest.EnrichService  = (*EnrichService)(nil)
	_ harvest.ExportService  = (*ExportService)(nil)
	_ harvest.TargetSource   = (*TargetSource)(nil)
	_ harvest.DomainLimiter  = (*DomainLimiter)(nil)
	_ harvest.ArtifactWriter = (*ArtifactWriter)(nil)
)

// ScrapeService is a mock implementation of harvest.ScrapeService.
type ScrapeService struct {
	ScrapeFn func(ctx context.Context, req *harvest.ScrapeRequest, progress harvest.ProgressFunc) (*harvest.ScrapeResponse, error)
}

func (s *ScrapeService) Scrape(ctx context.Context, req *harvest.ScrapeRequest, progress harvest.ProgressFunc) (*harvest.ScrapeResponse, error) {
	return s.ScrapeFn(ctx, req, progress)
}

// EnrichService is a mock implementation of harvest.EnrichService.
type EnrichService struct {
	EnrichFn func(ctx context.Context, req *harvest.EnrichRequest) (*harvest.EnrichResponse, error)
}

func (s *EnrichService) Enrich(ctx context.Context, req *harvest.EnrichRequest) (*harvest.EnrichResponse, error) {
	return s.EnrichFn(ctx, req)
}

// ExportService is a mock implementation of harvest.ExportService.
type ExportService struct {
	ExportFn func(req *harvest.ExportRequest) (*harvest.Artifact, error)
}

func (s *ExportService) Export(req *harvest.ExportRequest) (*harvest.Artifact, error) {
	return s.ExportFn(req)
}

// TargetSource is a mock implementation of harvest.TargetSource.
type TargetSource struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string, filter *harvest.URLFilter) ([]string, error)
}

func (s *TargetSource) DiscoverURLs(ctx context.Context, baseURL string, filter *harvest.URLFilter) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL, filter)
}

// DomainLimiter is a mock implementation of harvest.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}

// ArtifactWriter is a mock implementation of harvest.ArtifactWriter.
type ArtifactWriter struct {
	WriteArtifactFn func(ctx context.Context, a *harvest.Artifact) (string, error)
}

func (w *ArtifactWriter) WriteArtifact(ctx context.Context, a *harvest.Artifact) (string, error) {
	return w.WriteArtifactFn(ctx, a)
}
