package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqldb "github.com/workaholic-kv/workaholic/internal/database/sqlc"
)

// BuildRepository stores the history of build runs.
type BuildRepository struct {
	ctx *Context
}

func NewBuildRepository(dbCtx *Context) *BuildRepository {
	return &BuildRepository{ctx: dbCtx}
}

// Record writes a build and its per-namespace outcomes together.
func (r *BuildRepository) Record(ctx context.Context, build BuildRecord, tables []BuildTableRecord) error {
	return withTx(ctx, r.ctx, func(queries *sqldb.Queries) error {
		err := queries.InsertBuild(ctx, sqldb.InsertBuildParams{
			ID:         build.ID,
			StartedAt:  build.StartedAt.UnixMilli(),
			FinishedAt: build.FinishedAt.UnixMilli(),
			EntryCount: build.EntryCount,
			Status:     build.Status,
			Error:      nullString(build.Error),
		})
		if err != nil {
			return fmt.Errorf("failed to insert build %s: %w", build.ID, err)
		}
		for _, table := range tables {
			err := queries.InsertBuildTable(ctx, sqldb.InsertBuildTableParams{
				BuildID:   build.ID,
				Namespace: table.Namespace,
				RowCount:  table.RowCount,
				Digest:    table.Digest,
				Status:    table.Status,
			})
			if err != nil {
				return fmt.Errorf("failed to insert build table %s: %w", table.Namespace, err)
			}
		}
		return nil
	})
}

// Latest returns the most recent build, or nil when none has run.
func (r *BuildRepository) Latest(ctx context.Context) (*BuildRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("build repository: missing database context")
	}

	row, err := queries.LatestBuild(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	record := mapBuildRow(row)
	return &record, nil
}

func (r *BuildRepository) Tables(ctx context.Context, buildID string) ([]BuildTableRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("build repository: missing database context")
	}

	rows, err := queries.ListBuildTables(ctx, buildID)
	if err != nil {
		return nil, err
	}
	result := make([]BuildTableRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, mapBuildTableRow(row))
	}
	return result, nil
}
