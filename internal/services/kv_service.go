// Package services implements the key/value store and the build history on
// top of the database repositories.
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/workaholic-kv/workaholic/internal/clock"
	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/kv"
)

// KVService is the SQLite-backed kv.Store.
type KVService struct {
	repo  *database.KVRepository
	clock clock.Clock
}

var _ kv.Store = (*KVService)(nil)

// NewKVService creates a KVService. A nil clock uses wall time.
func NewKVService(ctx *database.Context, clk clock.Clock) *KVService {
	if clk == nil {
		clk = clock.Real()
	}
	return &KVService{
		repo:  database.NewKVRepository(ctx),
		clock: clk,
	}
}

// Get returns the raw value stored under namespace/key.
func (s *KVService) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	value, err := s.GetWithMetadata(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	return value.Value, nil
}

// GetWithMetadata returns the value together with its metadata.
func (s *KVService) GetWithMetadata(ctx context.Context, namespace, key string) (*kv.Value, error) {
	record, err := s.repo.Find(ctx, namespace, key, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	if record == nil {
		return nil, kv.ErrNotFound
	}
	return &kv.Value{
		Value:     record.Value,
		Metadata:  record.Metadata,
		Binary:    record.IsBinary,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// GetStream returns the value as a reader. Values are held in memory, so
// the reader is backed by the fetched bytes.
func (s *KVService) GetStream(ctx context.Context, namespace, key string) (io.ReadCloser, error) {
	value, err := s.Get(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(value)), nil
}

// List returns one page of keys in lexicographic order.
func (s *KVService) List(ctx context.Context, namespace string, opts kv.ListOptions) (*kv.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 || limit > kv.DefaultListLimit {
		limit = kv.DefaultListLimit
	}

	after, err := decodeCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}

	// One extra row tells us whether another page exists.
	records, err := s.repo.ListKeys(ctx, namespace, opts.Prefix, after, s.clock.Now(), limit+1)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}

	result := &kv.ListResult{Complete: len(records) <= limit}
	if !result.Complete {
		records = records[:limit]
		result.Cursor = encodeCursor(records[len(records)-1].Key)
	}

	result.Keys = make([]kv.KeyInfo, 0, len(records))
	for _, record := range records {
		result.Keys = append(result.Keys, kv.KeyInfo{
			Name:       record.Key,
			Metadata:   record.Metadata,
			Expiration: record.ExpiresAt,
		})
	}
	return result, nil
}

// Put writes a single value.
func (s *KVService) Put(ctx context.Context, namespace, key string, value []byte, opts kv.PutOptions) error {
	now := s.clock.Now()
	record := database.KVRecord{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		Metadata:  opts.Metadata,
		IsBinary:  opts.Binary,
		UpdatedAt: now,
	}
	if opts.TTL > 0 {
		expires := now.Add(opts.TTL)
		record.ExpiresAt = &expires
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// ReplaceNamespace swaps the contents of namespace for entries in one
// transaction.
func (s *KVService) ReplaceNamespace(ctx context.Context, namespace string, entries []content.Entry) error {
	now := s.clock.Now()
	records := make([]database.KVRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, database.KVRecord{
			Key:       entry.Key,
			Value:     entry.Value,
			Metadata:  entry.Metadata,
			IsBinary:  entry.IsBinary,
			UpdatedAt: now,
		})
	}
	if _, err := s.repo.ReplaceNamespace(ctx, namespace, records); err != nil {
		return fmt.Errorf("replace namespace %s: %w", namespace, err)
	}
	return nil
}

// PurgeExpired deletes every expired row and reports how many were removed.
func (s *KVService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}

// Counts returns the number of live rows per namespace.
func (s *KVService) Counts(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByNamespace(ctx, s.clock.Now())
}

func encodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid list cursor %q: %w", cursor, err)
	}
	return string(raw), nil
}
