// Package kv defines the namespaced key/value store contract shared by the
// build pipeline, the query router and the content source.
package kv

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/workaholic-kv/workaholic/internal/content"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("kv: key not found")

// DefaultListLimit caps a single List page when no limit is given.
const DefaultListLimit = 1000

// Value is a stored value together with its metadata.
type Value struct {
	Value     []byte
	Metadata  content.Metadata
	Binary    bool
	UpdatedAt time.Time
}

// PutOptions controls how a value is written.
type PutOptions struct {
	Metadata content.Metadata
	// TTL expires the value after the given duration. Zero keeps it forever.
	TTL    time.Duration
	Binary bool
}

// ListOptions selects a page of keys.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// KeyInfo describes one listed key.
type KeyInfo struct {
	Name       string
	Metadata   content.Metadata
	Expiration *time.Time
}

// ListResult is one page of keys. Cursor is empty once Complete is true.
type ListResult struct {
	Keys     []KeyInfo
	Cursor   string
	Complete bool
}

// Reader is the read half of Store.
type Reader interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	GetWithMetadata(ctx context.Context, namespace, key string) (*Value, error)
	GetStream(ctx context.Context, namespace, key string) (io.ReadCloser, error)
	List(ctx context.Context, namespace string, opts ListOptions) (*ListResult, error)
}

// Store is a namespaced key/value store.
type Store interface {
	Reader
	Put(ctx context.Context, namespace, key string, value []byte, opts PutOptions) error
	// ReplaceNamespace atomically swaps the full contents of namespace for
	// entries. Readers see either the old rows or the new ones.
	ReplaceNamespace(ctx context.Context, namespace string, entries []content.Entry) error
}

// ListAll follows cursors until every key under prefix has been read.
func ListAll(ctx context.Context, store Reader, namespace, prefix string) ([]KeyInfo, error) {
	var keys []KeyInfo
	cursor := ""
	for {
		page, err := store.List(ctx, namespace, ListOptions{Prefix: prefix, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		keys = append(keys, page.Keys...)
		if page.Complete || page.Cursor == "" {
			return keys, nil
		}
		cursor = page.Cursor
	}
}
