package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.RunService = (*RunService)(nil)

// RunService is a mock implementation of harvest.RunService.
type RunService struct {
	CreateRunFn   func(ctx context.Context, run *harvest.Run) error
	FindRunByIDFn func(ctx context.Context, id string) (*harvest.Run, error)
	FindRunsFn    func(ctx context.Context, filter harvest.RunFilter) ([]*harvest.Run, error)
}

func (s *RunService) CreateRun(ctx context.Context, run *harvest.Run) error {
	return s.CreateRunFn(ctx, run)
}

func (s *RunService) FindRunByID(ctx context.Context, id string) (*harvest.Run, error) {
	return s.FindRunByIDFn(ctx, id)
}

func (s *RunService) FindRuns(ctx context.Context, filter harvest.RunFilter) ([]*harvest.Run, error) {
	return s.FindRunsFn(ctx, filter)
}
