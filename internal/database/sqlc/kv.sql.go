package sqldb

import (
	"context"
	"database/sql"
)

const getKV = `SELECT namespace, key, value, metadata, is_binary, encoding, expires_at, updated_at
FROM kv
WHERE namespace = ? AND key = ? AND (expires_at IS NULL OR expires_at > ?)`

type GetKVParams struct {
	Namespace string
	Key       string
	Now       int64
}

func (q *Queries) GetKV(ctx context.Context, arg GetKVParams) (Kv, error) {
	row := q.db.QueryRowContext(ctx, getKV, arg.Namespace, arg.Key, arg.Now)
	var i Kv
	err := row.Scan(
		&i.Namespace,
		&i.Key,
		&i.Value,
		&i.Metadata,
		&i.IsBinary,
		&i.Encoding,
		&i.ExpiresAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listKVKeys = `SELECT key, metadata, expires_at
FROM kv
WHERE namespace = ?
  AND substr(key, 1, length(?)) = ?
  AND key > ?
  AND (expires_at IS NULL OR expires_at > ?)
ORDER BY key
LIMIT ?`

type ListKVKeysParams struct {
	Namespace string
	Prefix    string
	After     string
	Now       int64
	Limit     int64
}

type ListKVKeysRow struct {
	Key       string
	Metadata  []byte
	ExpiresAt sql.NullInt64
}

func (q *Queries) ListKVKeys(ctx context.Context, arg ListKVKeysParams) ([]ListKVKeysRow, error) {
	rows, err := q.db.QueryContext(ctx, listKVKeys,
		arg.Namespace,
		arg.Prefix,
		arg.Prefix,
		arg.After,
		arg.Now,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListKVKeysRow
	for rows.Next() {
		var i ListKVKeysRow
		if err := rows.Scan(&i.Key, &i.Metadata, &i.ExpiresAt); err != nil {
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

const upsertKV = `INSERT INTO kv (namespace, key, value, metadata, is_binary, encoding, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (namespace, key) DO UPDATE SET
    value = excluded.value,
    metadata = excluded.metadata,
    is_binary = excluded.is_binary,
    encoding = excluded.encoding,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at`

type UpsertKVParams struct {
	Namespace string
	Key       string
	Value     []byte
	Metadata  []byte
	IsBinary  int64
	Encoding  string
	ExpiresAt sql.NullInt64
	UpdatedAt int64
}

func (q *Queries) UpsertKV(ctx context.Context, arg UpsertKVParams) error {
	_, err := q.db.ExecContext(ctx, upsertKV,
		arg.Namespace,
		arg.Key,
		arg.Value,
		arg.Metadata,
		arg.IsBinary,
		arg.Encoding,
		arg.ExpiresAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteKVNamespace = `DELETE FROM kv WHERE namespace = ?`

func (q *Queries) DeleteKVNamespace(ctx context.Context, namespace string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteKVNamespace, namespace)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpiredKV = `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`

func (q *Queries) DeleteExpiredKV(ctx context.Context, now int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredKV, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countKVByNamespace = `SELECT namespace, COUNT(*) AS row_count
FROM kv
WHERE expires_at IS NULL OR expires_at > ?
GROUP BY namespace
ORDER BY namespace`

type CountKVByNamespaceRow struct {
	Namespace string
	RowCount  int64
}

func (q *Queries) CountKVByNamespace(ctx context.Context, now int64) ([]CountKVByNamespaceRow, error) {
	rows, err := q.db.QueryContext(ctx, countKVByNamespace, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountKVByNamespaceRow
	for rows.Next() {
		var i CountKVByNamespaceRow
		if err := rows.Scan(&i.Namespace, &i.RowCount); err != nil {
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

const deleteAllKV = `DELETE FROM kv`

func (q *Queries) DeleteAllKV(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllKV)
	return err
}
