// Package migrations embeds the SQL that creates the key/value table and the
// build history tables.
package migrations

import "embed"

// Files holds every *.sql migration, applied in version order at startup.
//
//go:embed *.sql
var Files embed.FS
