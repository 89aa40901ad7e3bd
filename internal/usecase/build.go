package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/workaholic-kv/workaholic/internal/clock"
	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/filesystem"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/services"
)

// Build statuses recorded in the history.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Build loads raw entries, runs the pipeline into the store and records
// the run in the build history.
type Build struct {
	kvService    *services.KVService
	buildService *services.BuildService
	pipeline     *pipeline.Pipeline
	clock        clock.Clock
	log          zerolog.Logger
}

func NewBuild(dbCtx *database.Context, pipe *pipeline.Pipeline, clk clock.Clock, log zerolog.Logger) *Build {
	if clk == nil {
		clk = clock.Real()
	}
	return &Build{
		kvService:    services.NewKVService(dbCtx, clk),
		buildService: services.NewBuildService(dbCtx),
		pipeline:     pipe,
		clock:        clk,
		log:          log,
	}
}

type BuildResult struct {
	Summary services.BuildSummary
	Purged  int64
	Result  *pipeline.Result
}

// Run builds from the directory or bundle at sourcePath. When some
// namespaces fail the result is still returned together with a
// *pipeline.BuildError.
func (u *Build) Run(ctx context.Context, sourcePath string) (*BuildResult, error) {
	raw, err := filesystem.Load(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	return u.RunEntries(ctx, raw)
}

// RunEntries builds from entries already in memory.
func (u *Build) RunEntries(ctx context.Context, raw []content.Entry) (*BuildResult, error) {
	out := &BuildResult{}
	build := database.BuildRecord{
		ID:         uuid.NewString(),
		StartedAt:  u.clock.Now(),
		EntryCount: int64(len(raw)),
	}
	log := u.log.With().Str("build", build.ID).Logger()

	purged, err := u.kvService.PurgeExpired(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge expired rows: %w", err)
	}
	out.Purged = purged

	result, buildErr := u.pipeline.Build(ctx, u.kvService, raw)
	if result == nil {
		build.FinishedAt = u.clock.Now()
		build.Status = StatusFailed
		build.Error = buildErr.Error()
		u.record(context.WithoutCancel(ctx), log, services.BuildSummary{Build: build})
		return nil, buildErr
	}
	out.Result = result

	failed := make(map[string]*pipeline.StageError, len(result.Failures))
	for _, failure := range result.Failures {
		failed[failure.Namespace] = failure
	}

	var tables []database.BuildTableRecord
	written := 0
	for _, table := range result.Tables {
		status := StatusOK
		if _, ok := failed[table.Namespace]; ok {
			status = StatusFailed
		} else {
			written++
		}
		tables = append(tables, database.BuildTableRecord{
			BuildID:   build.ID,
			Namespace: table.Namespace,
			RowCount:  int64(len(table.Rows)),
			Digest:    table.Digest,
			Status:    status,
		})
	}
	for namespace, failure := range failed {
		if failure.Stage == pipeline.StageIndex {
			tables = append(tables, database.BuildTableRecord{BuildID: build.ID, Namespace: namespace, Status: StatusFailed})
		}
	}
	slices.SortFunc(tables, func(a, b database.BuildTableRecord) int {
		return strings.Compare(a.Namespace, b.Namespace)
	})

	build.FinishedAt = u.clock.Now()
	build.Status = StatusOK
	if buildErr != nil {
		build.Status = StatusPartial
		if written == 0 {
			build.Status = StatusFailed
		}
		build.Error = buildErr.Error()
	}

	out.Summary = services.BuildSummary{Build: build, Tables: tables}
	if err := u.record(ctx, log, out.Summary); err != nil {
		return out, errors.Join(buildErr, err)
	}
	return out, buildErr
}

func (u *Build) record(ctx context.Context, log zerolog.Logger, summary services.BuildSummary) error {
	if err := u.buildService.Record(ctx, summary); err != nil {
		log.Error().Err(err).Msg("Failed to record build")
		return err
	}
	log.Info().
		Str("status", summary.Build.Status).
		Int64("entries", summary.Build.EntryCount).
		Int("tables", len(summary.Tables)).
		Msg("Build recorded")
	return nil
}

// Latest returns the most recent build summary.
func (u *Build) Latest(ctx context.Context) (*services.BuildSummary, error) {
	return u.buildService.Latest(ctx)
}
