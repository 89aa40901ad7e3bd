package sqldb

import (
	"context"
	"database/sql"
)

const insertBuild = `INSERT INTO builds (id, started_at, finished_at, entry_count, status, error)
VALUES (?, ?, ?, ?, ?, ?)`

type InsertBuildParams struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	EntryCount int64
	Status     string
	Error      sql.NullString
}

func (q *Queries) InsertBuild(ctx context.Context, arg InsertBuildParams) error {
	_, err := q.db.ExecContext(ctx, insertBuild,
		arg.ID,
		arg.StartedAt,
		arg.FinishedAt,
		arg.EntryCount,
		arg.Status,
		arg.Error,
	)
	return err
}

const insertBuildTable = `INSERT INTO build_tables (build_id, namespace, row_count, digest, status)
VALUES (?, ?, ?, ?, ?)`

type InsertBuildTableParams struct {
	BuildID   string
	Namespace string
	RowCount  int64
	Digest    string
	Status    string
}

func (q *Queries) InsertBuildTable(ctx context.Context, arg InsertBuildTableParams) error {
	_, err := q.db.ExecContext(ctx, insertBuildTable,
		arg.BuildID,
		arg.Namespace,
		arg.RowCount,
		arg.Digest,
		arg.Status,
	)
	return err
}

const latestBuild = `SELECT id, started_at, finished_at, entry_count, status, error
FROM builds
ORDER BY started_at DESC, id DESC
LIMIT 1`

func (q *Queries) LatestBuild(ctx context.Context) (Build, error) {
	row := q.db.QueryRowContext(ctx, latestBuild)
	var i Build
	err := row.Scan(
		&i.ID,
		&i.StartedAt,
		&i.FinishedAt,
		&i.EntryCount,
		&i.Status,
		&i.Error,
	)
	return i, err
}

const listBuildTables = `SELECT build_id, namespace, row_count, digest, status
FROM build_tables
WHERE build_id = ?
ORDER BY namespace`

func (q *Queries) ListBuildTables(ctx context.Context, buildID string) ([]BuildTable, error) {
	rows, err := q.db.QueryContext(ctx, listBuildTables, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BuildTable
	for rows.Next() {
		var i BuildTable
		if err := rows.Scan(&i.BuildID, &i.Namespace, &i.RowCount, &i.Digest, &i.Status); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllBuildTables = `DELETE FROM build_tables`

func (q *Queries) DeleteAllBuildTables(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllBuildTables)
	return err
}

const deleteAllBuilds = `DELETE FROM builds`

func (q *Queries) DeleteAllBuilds(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllBuilds)
	return err
}
