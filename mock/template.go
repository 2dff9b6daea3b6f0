package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.TemplateService = (*TemplateService)(nil)

// TemplateService is a mock implementation of harvest.TemplateService.
type TemplateService struct {
	SaveTemplateFn       func(ctx context.Context, tmpl *harvest.Template) error
	FindTemplateByNameFn func(ctx context.Context, name string) (*harvest.Template, error)
	FindTemplatesFn      func(ctx context.Context) ([]*harvest.Template, error)
}

func (s *TemplateService) SaveTemplate(ctx context.Context, tmpl *harvest.Template) error {
	return s.SaveTemplateFn(ctx, tmpl)
}

func (s *TemplateService) FindTemplateByName(ctx context.Context, name string) (*harvest.Template, error) {
	return s.FindTemplateByNameFn(ctx, name)
}

func (s *TemplateService) FindTemplates(ctx context.Context) ([]*harvest.Template, error) {
	return s.FindTemplatesFn(ctx)
}
