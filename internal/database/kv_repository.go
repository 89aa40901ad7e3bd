package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqldb "github.com/workaholic-kv/workaholic/internal/database/sqlc"
)

// KVRepository reads and writes rows of the kv table.
type KVRepository struct {
	ctx *Context
}

func NewKVRepository(dbCtx *Context) *KVRepository {
	return &KVRepository{ctx: dbCtx}
}

// Find returns the live row for namespace/key, or nil when it is missing or
// expired at now.
func (r *KVRepository) Find(ctx context.Context, namespace, key string, now time.Time) (*KVRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("kv repository: missing database context")
	}

	row, err := queries.GetKV(ctx, sqldb.GetKVParams{Namespace: namespace, Key: key, Now: now.UnixMilli()})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	record, err := mapKVRow(row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListKeys returns up to limit live keys that start with prefix and sort
// strictly after the given key.
func (r *KVRepository) ListKeys(ctx context.Context, namespace, prefix, after string, now time.Time, limit int) ([]KeyRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("kv repository: missing database context")
	}

	rows, err := queries.ListKVKeys(ctx, sqldb.ListKVKeysParams{
		Namespace: namespace,
		Prefix:    prefix,
		After:     after,
		Now:       now.UnixMilli(),
		Limit:     int64(limit),
	})
	if err != nil {
		return nil, err
	}

	result := make([]KeyRecord, 0, len(rows))
	for _, row := range rows {
		record, err := mapKeyRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, nil
}

func (r *KVRepository) Upsert(ctx context.Context, record KVRecord) error {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("kv repository: missing database context")
	}

	params, err := upsertParams(record)
	if err != nil {
		return err
	}
	return queries.UpsertKV(ctx, params)
}

// ReplaceNamespace deletes every row of namespace and inserts records in a
// single transaction. It returns the number of rows removed.
func (r *KVRepository) ReplaceNamespace(ctx context.Context, namespace string, records []KVRecord) (int64, error) {
	params := make([]sqldb.UpsertKVParams, 0, len(records))
	for _, record := range records {
		record.Namespace = namespace
		p, err := upsertParams(record)
		if err != nil {
			return 0, err
		}
		params = append(params, p)
	}

	var removed int64
	err := withTx(ctx, r.ctx, func(queries *sqldb.Queries) error {
		deleted, err := queries.DeleteKVNamespace(ctx, namespace)
		if err != nil {
			return fmt.Errorf("failed to clear namespace %q: %w", namespace, err)
		}
		removed = deleted
		for _, p := range params {
			if err := queries.UpsertKV(ctx, p); err != nil {
				return fmt.Errorf("failed to write %s/%s: %w", namespace, p.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteExpired removes every row whose expiry is at or before now.
func (r *KVRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("kv repository: missing database context")
	}
	return queries.DeleteExpiredKV(ctx, now.UnixMilli())
}

// CountByNamespace returns the number of live rows per namespace.
func (r *KVRepository) CountByNamespace(ctx context.Context, now time.Time) (map[string]int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("kv repository: missing database context")
	}

	rows, err := queries.CountKVByNamespace(ctx, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Namespace] = row.RowCount
	}
	return counts, nil
}
