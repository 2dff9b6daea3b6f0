package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ harvest.RunService = (*RunService)(nil)

// RunService implements harvest.RunService using SQLite. Records and
// statistics are stored as JSON documents.
type RunService struct {
	db *DB
}

// NewRunService creates a new RunService.
func NewRunService(db *DB) *RunService {
	return &RunService{db: db}
}

// CreateRun persists a run with a generated ID and creation time.
func (s *RunService) CreateRun(ctx context.Context, run *harvest.Run) error {
	records := run.Records
	if records == nil {
		records = []*harvest.ScrapeRecord{}
	}
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	statsJSON, err := json.Marshal(run.Statistics)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	id := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, template_name, records, statistics, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, run.TemplateName, string(recordsJSON), string(statsJSON), formatTime(createdAt))
	if err != nil {
		return err
	}

	run.ID = id
	run.CreatedAt = createdAt
	return nil
}

// FindRunByID retrieves a run by ID.
func (s *RunService) FindRunByID(ctx context.Context, id string) (*harvest.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, template_name, records, statistics, created_at
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, harvest.Errorf(harvest.ENOTFOUND, "run not found")
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FindRuns retrieves runs matching the filter, newest first.
func (s *RunService) FindRuns(ctx context.Context, filter harvest.RunFilter) ([]*harvest.Run, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, template_name, records, statistics, created_at FROM runs WHERE 1=1")

	if filter.TemplateName != nil {
		query.WriteString(" AND template_name = ?")
		args = append(args, *filter.TemplateName)
	}

	query.WriteString(" ORDER BY created_at DESC, rowid DESC")

	// SQLite requires LIMIT when OFFSET is used.
	if filter.Offset > 0 && filter.Limit <= 0 {
		query.WriteString(" LIMIT -1")
	}
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*harvest.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(row scanner) (*harvest.Run, error) {
	var run harvest.Run
	var records, stats, createdAt string

	if err := row.Scan(&run.ID, &run.TemplateName, &records, &stats, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(records), &run.Records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &run.Statistics); err != nil {
		return nil, fmt.Errorf("failed to decode statistics: %w", err)
	}

	var err error
	if run.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &run, nil
}
