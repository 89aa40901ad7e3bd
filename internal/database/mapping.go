package database

import (
	"fmt"

	sqldb "github.com/workaholic-kv/workaholic/internal/database/sqlc"
)

func mapKVRow(row sqldb.Kv) (KVRecord, error) {
	value, err := decompressValue(row.Value, row.Encoding)
	if err != nil {
		return KVRecord{}, fmt.Errorf("%s/%s: %w", row.Namespace, row.Key, err)
	}
	meta, err := decodeMetadata(row.Metadata)
	if err != nil {
		return KVRecord{}, fmt.Errorf("%s/%s: %w", row.Namespace, row.Key, err)
	}
	return KVRecord{
		Namespace: row.Namespace,
		Key:       row.Key,
		Value:     value,
		Metadata:  meta,
		IsBinary:  row.IsBinary != 0,
		ExpiresAt: optionalMillis(row.ExpiresAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}, nil
}

func mapKeyRow(row sqldb.ListKVKeysRow) (KeyRecord, error) {
	meta, err := decodeMetadata(row.Metadata)
	if err != nil {
		return KeyRecord{}, fmt.Errorf("%s: %w", row.Key, err)
	}
	return KeyRecord{
		Key:       row.Key,
		Metadata:  meta,
		ExpiresAt: optionalMillis(row.ExpiresAt),
	}, nil
}

func upsertParams(record KVRecord) (sqldb.UpsertKVParams, error) {
	meta, err := encodeMetadata(record.Metadata)
	if err != nil {
		return sqldb.UpsertKVParams{}, fmt.Errorf("%s/%s: %w", record.Namespace, record.Key, err)
	}
	value, encoding := compressValue(record.Value, record.IsBinary)
	if value == nil {
		value = []byte{}
	}
	return sqldb.UpsertKVParams{
		Namespace: record.Namespace,
		Key:       record.Key,
		Value:     value,
		Metadata:  meta,
		IsBinary:  boolToInt64(record.IsBinary),
		Encoding:  encoding,
		ExpiresAt: timeToNullMillis(record.ExpiresAt),
		UpdatedAt: record.UpdatedAt.UnixMilli(),
	}, nil
}

func mapBuildRow(row sqldb.Build) BuildRecord {
	return BuildRecord{
		ID:         row.ID,
		StartedAt:  fromMillis(row.StartedAt),
		FinishedAt: fromMillis(row.FinishedAt),
		EntryCount: row.EntryCount,
		Status:     row.Status,
		Error:      optionalString(row.Error),
	}
}

func mapBuildTableRow(row sqldb.BuildTable) BuildTableRecord {
	return BuildTableRecord{
		BuildID:   row.BuildID,
		Namespace: row.Namespace,
		RowCount:  row.RowCount,
		Digest:    row.Digest,
		Status:    row.Status,
	}
}
