package database

import (
	"time"

	"github.com/workaholic-kv/workaholic/internal/content"
)

// KVRecord is a decoded row of the kv table.
type KVRecord struct {
	Namespace string
	Key       string
	Value     []byte
	Metadata  content.Metadata
	IsBinary  bool
	// ExpiresAt is nil for values that never expire.
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// KeyRecord is the listing projection of a kv row.
type KeyRecord struct {
	Key       string
	Metadata  content.Metadata
	ExpiresAt *time.Time
}

// BuildRecord mirrors the builds table: one row per build run.
type BuildRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	EntryCount int64
	Status     string
	Error      string
}

// BuildTableRecord records what one build did to one namespace.
type BuildTableRecord struct {
	BuildID   string
	Namespace string
	RowCount  int64
	Digest    string
	Status    string
}
