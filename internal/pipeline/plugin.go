// Package pipeline turns raw entries into derived namespace tables.
//
// A build runs every transform stage in configuration order, each over the
// previous stage's output, then runs every index stage over the final item
// list. Each index stage produces the complete contents of the namespace it
// owns.
package pipeline

import (
	"context"

	"github.com/workaholic-kv/workaholic/internal/content"
)

// Transformer replaces one entry with zero or more entries.
type Transformer interface {
	Transform(ctx context.Context, entry content.Entry) ([]content.Entry, error)
}

// Indexer derives the rows of a namespace from the full item list.
type Indexer interface {
	Index(ctx context.Context, entries []content.Entry) ([]content.Entry, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, entry content.Entry) ([]content.Entry, error)

func (f TransformFunc) Transform(ctx context.Context, entry content.Entry) ([]content.Entry, error) {
	return f(ctx, entry)
}

// IndexFunc adapts a function to Indexer.
type IndexFunc func(ctx context.Context, entries []content.Entry) ([]content.Entry, error)

func (f IndexFunc) Index(ctx context.Context, entries []content.Entry) ([]content.Entry, error) {
	return f(ctx, entries)
}

// Plugin is a registration in the build. Namespace names the table the
// Indexer owns; for transform-only plugins it labels the stage in logs and
// errors. Either capability may be nil.
type Plugin struct {
	Namespace   string
	Transformer Transformer
	Indexer     Indexer
}
