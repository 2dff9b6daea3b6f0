package harvest

import (
	"context"
	"strings"
	"time"
)

// Template is a named, reusable rule set.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Rules       RuleSet   `json:"selectors"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate returns an error if the template contains invalid fields.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return Errorf(EINVALID, "template name required")
	}
	if strings.ContainsAny(t.Name, "/\\") {
		return Errorf(EINVALID, "template name must not contain path separators")
	}
	return t.Rules.Validate()
}

// TemplateService represents a service for managing templates.
// Templates are keyed by name; saving an existing name overwrites it.
type TemplateService interface {
	// SaveTemplate creates the template or overwrites the one with the same
	// name. ID and CreatedAt are preserved on overwrite.
	SaveTemplate(ctx context.Context, tmpl *Template) error

	// FindTemplateByName retrieves a template by name.
	// Returns ENOTFOUND if the template does not exist.
	FindTemplateByName(ctx context.Context, name string) (*Template, error)

	// FindTemplates returns all templates ordered by name.
	FindTemplates(ctx context.Context) ([]*Template, error)
}
