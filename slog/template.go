package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingTemplateService implements harvest.TemplateService.
var _ harvest.TemplateService = (*LoggingTemplateService)(nil)

// LoggingTemplateService wraps a TemplateService with logging.
type LoggingTemplateService struct {
	next   harvest.TemplateService
	logger *slog.Logger
}

// NewLoggingTemplateService creates a new LoggingTemplateService.
func NewLoggingTemplateService(next harvest.TemplateService, logger *slog.Logger) *LoggingTemplateService {
	return &LoggingTemplateService{next: next, logger: logger}
}

// SaveTemplate delegates to the wrapped service and logs the operation.
func (s *LoggingTemplateService) SaveTemplate(ctx context.Context, tmpl *harvest.Template) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("save template",
			"name", tmpl.Name,
			"rules", len(tmpl.Rules),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SaveTemplate(ctx, tmpl)
}

// FindTemplateByName delegates to the wrapped service and logs the lookup.
func (s *LoggingTemplateService) FindTemplateByName(ctx context.Context, name string) (tmpl *harvest.Template, err error) {
	defer func(begin time.Time) {
		s.logger.Info("find template",
			"name", name,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindTemplateByName(ctx, name)
}

// FindTemplates delegates to the wrapped service.
func (s *LoggingTemplateService) FindTemplates(ctx context.Context) ([]*harvest.Template, error) {
	return s.next.FindTemplates(ctx)
}
