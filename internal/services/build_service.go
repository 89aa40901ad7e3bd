package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/workaholic-kv/workaholic/internal/database"
)

// ErrNoBuilds is returned when no build has been recorded yet.
var ErrNoBuilds = errors.New("no builds recorded")

// BuildSummary is a build together with its per-namespace outcomes.
type BuildSummary struct {
	Build  database.BuildRecord
	Tables []database.BuildTableRecord
}

// BuildService records and reads the build history.
type BuildService struct {
	repo *database.BuildRepository
}

// NewBuildService creates a new BuildService.
func NewBuildService(ctx *database.Context) *BuildService {
	return &BuildService{repo: database.NewBuildRepository(ctx)}
}

// Record persists a finished build.
func (s *BuildService) Record(ctx context.Context, summary BuildSummary) error {
	if summary.Build.ID == "" {
		return fmt.Errorf("record build: missing id")
	}
	return s.repo.Record(ctx, summary.Build, summary.Tables)
}

// Latest returns the most recent build.
func (s *BuildService) Latest(ctx context.Context) (*BuildSummary, error) {
	build, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if build == nil {
		return nil, ErrNoBuilds
	}
	tables, err := s.repo.Tables(ctx, build.ID)
	if err != nil {
		return nil, err
	}
	return &BuildSummary{Build: *build, Tables: tables}, nil
}
