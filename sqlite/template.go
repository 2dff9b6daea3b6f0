package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ harvest.TemplateService = (*TemplateService)(nil)

// TemplateService implements harvest.TemplateService using SQLite.
type TemplateService struct {
	db *DB
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(db *DB) *TemplateService {
	return &TemplateService{db: db}
}

// SaveTemplate creates a template or overwrites the one with the same name.
// On return tmpl holds the stored ID and timestamps.
func (s *TemplateService) SaveTemplate(ctx context.Context, tmpl *harvest.Template) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}

	rules, err := json.Marshal(tmpl.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, description, rules, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			rules = excluded.rules,
			updated_at = excluded.updated_at
	`, uuid.New().String(), tmpl.Name, tmpl.Description, string(rules), now, now)
	if err != nil {
		return err
	}

	var id, createdAt, updatedAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at FROM templates WHERE name = ?
	`, tmpl.Name).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return err
	}

	tmpl.ID = id
	if tmpl.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return err
	}
	if tmpl.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return err
	}
	return nil
}

// FindTemplateByName retrieves a template by name.
func (s *TemplateService) FindTemplateByName(ctx context.Context, name string) (*harvest.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, rules, created_at, updated_at
		FROM templates
		WHERE name = ?
	`, name)

	tmpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, harvest.Errorf(harvest.ENOTFOUND, "template %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// FindTemplates retrieves all templates ordered by name.
func (s *TemplateService) FindTemplates(ctx context.Context) ([]*harvest.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, rules, created_at, updated_at
		FROM templates
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*harvest.Template{}
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}

	return templates, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (*harvest.Template, error) {
	var tmpl harvest.Template
	var rules, createdAt, updatedAt string

	if err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Description, &rules, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rules), &tmpl.Rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	var err error
	if tmpl.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if tmpl.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
