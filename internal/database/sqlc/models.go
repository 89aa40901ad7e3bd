package sqldb

import "database/sql"

// Kv is a row of the kv table.
type Kv struct {
	Namespace string
	Key       string
	Value     []byte
	Metadata  []byte
	IsBinary  int64
	Encoding  string
	ExpiresAt sql.NullInt64
	UpdatedAt int64
}

// Build is a row of the builds table.
type Build struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	EntryCount int64
	Status     string
	Error      sql.NullString
}

// BuildTable is a row of the build_tables table.
type BuildTable struct {
	BuildID   string
	Namespace string
	RowCount  int64
	Digest    string
	Status    string
}
